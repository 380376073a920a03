package sim

import (
	"context"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// wireMessage is the msgpack-on-the-wire shape of one delivered payload,
// matching the {origin, msg_id, payload, path} record §6 specifies for the
// upstream sink.
type wireMessage struct {
	Origin  uint16   `msgpack:"origin"`
	MsgID   uint16   `msgpack:"msg_id"`
	Payload []byte   `msgpack:"payload"`
	Path    []uint16 `msgpack:"path"`
}

// FileUpstreamSink is a simulation-side stand-in for the real upstream
// delivery path (e.g. a message broker): every batch is msgpack-encoded
// and appended to w, one frame per message.
type FileUpstreamSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFileUpstreamSink constructs a sink writing msgpack-encoded batches to w.
func NewFileUpstreamSink(w io.Writer) *FileUpstreamSink {
	return &FileUpstreamSink{w: w}
}

// PublishBatch implements iface.UpstreamSink.
func (s *FileUpstreamSink) PublishBatch(ctx context.Context, messages []iface.UpstreamMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := msgpack.NewEncoder(s.w)
	for _, m := range messages {
		wm := wireMessage{Origin: m.Origin, MsgID: m.MsgID, Payload: m.Payload, Path: m.Path}
		if err := enc.Encode(wm); err != nil {
			return err
		}
	}
	return nil
}

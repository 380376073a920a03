package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// ControlEndpoint is an HTTP-backed iface.ControlChannel, generalizing a
// JSON-decoded command-handler pattern to the mesh core's STOP/START/
// STATUS/PING/SET_*/SAVE/SHOW/RESET_CONFIG grammar. A single command is
// in flight at a time: the HTTP handler blocks until the core's
// processing phase calls Reply.
type ControlEndpoint struct {
	commands chan iface.ControlCommand

	inflight sync.Mutex // held for the whole of one request

	mu    sync.Mutex
	reply chan string
}

// NewControlEndpoint constructs an endpoint with a small buffered command
// queue; the grammar issues one command per request so in practice it is
// never deep.
func NewControlEndpoint() *ControlEndpoint {
	return &ControlEndpoint{
		commands: make(chan iface.ControlCommand, 4),
	}
}

// Commands implements iface.ControlChannel.
func (c *ControlEndpoint) Commands() <-chan iface.ControlCommand { return c.commands }

// Reply implements iface.ControlChannel. Called from the core's own loop.
func (c *ControlEndpoint) Reply(text string) {
	c.mu.Lock()
	ch := c.reply
	c.mu.Unlock()
	if ch != nil {
		select {
		case ch <- text:
		default:
		}
	}
}

// controlRequest is the JSON body a control POST carries: a verb from the
// grammar in §6 plus its positional arguments.
type controlRequest struct {
	Verb string   `json:"verb"`
	Args []string `json:"args"`
}

// handleControl parses one control command, submits it to the core, and
// waits for the Reply call the processing phase makes in response.
func (c *ControlEndpoint) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	verb := strings.ToUpper(strings.TrimSpace(req.Verb))
	if verb == "" {
		http.Error(w, "missing verb", http.StatusBadRequest)
		return
	}

	c.inflight.Lock()
	defer c.inflight.Unlock()

	replyCh := make(chan string, 1)
	c.mu.Lock()
	c.reply = replyCh
	c.mu.Unlock()

	select {
	case c.commands <- iface.ControlCommand{Verb: verb, Args: req.Args}:
	default:
		http.Error(w, "command channel full", http.StatusServiceUnavailable)
		return
	}

	reply := <-replyCh
	w.Write([]byte(reply))
}

// RegisterControlRoutes wires the /control endpoint onto mux.
func RegisterControlRoutes(mux *http.ServeMux, c *ControlEndpoint) {
	mux.HandleFunc("/control", c.handleControl)
}

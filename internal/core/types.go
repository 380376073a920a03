package core

// Stratum is distance to time authority, in the NTP sense.
type Stratum uint8

const (
	StratumGateway  Stratum = 0
	StratumDirect   Stratum = 1
	StratumIndirect Stratum = 2
	StratumLocal    Stratum = 3
)

func (s Stratum) String() string {
	switch s {
	case StratumGateway:
		return "gateway"
	case StratumDirect:
		return "direct"
	case StratumIndirect:
		return "indirect"
	default:
		return "local"
	}
}

// OneHopNeighbour is one entry in a neighbour's advertised one-hop list,
// carried in NeighbourEntry so routing can reason about links it has not
// directly observed.
type OneHopNeighbour struct {
	ID   uint16
	Slot uint8
	Hop  uint8
}

// NeighbourEntry is one row of the neighbour table, keyed by NodeID.
type NeighbourEntry struct {
	ID   uint16
	Slot uint8
	Hop  uint8

	IsLocalized bool // wire bit, preserved but unconsumed by routing (spec open question)

	LastCycle        uint8
	CycleHistory     [3]uint8
	CyclesSequential bool

	Stratum Stratum
	RSSI    int8
	SNR     int8

	AmIListed      bool // true iff our NodeID appeared in this neighbour's advert list
	IsBidirectional bool // mirrors AmIListed; kept distinct per spec's field list

	InactiveCounter uint8

	OneHop []OneHopNeighbour // the neighbour's own one-hop list, as last advertised
}

// MyInfo is this node's own identity and routing/sync state.
type MyInfo struct {
	ID                uint16
	Slot              uint8
	Hop               uint8
	Cycle             uint8
	Stratum           Stratum
	SyncSource        uint16
	SyncValidCounter  int
	IsGateway         bool
}

// ForwardEntry is one payload in transit toward the gateway.
type ForwardEntry struct {
	Origin            uint16
	MsgID             uint16
	HopsSoFar         uint8
	Payload           [6]byte
	PayloadLen        uint8
	Path              [3]uint16
	OriginTxTimestamp uint64
}

// LatencyRecord is one gateway-side end-to-end latency sample.
type LatencyRecord struct {
	Origin    uint16
	MsgID     uint16
	LatencyUS int64
}

// LatencyStats tracks running count/sum/min/max for one origin's latency
// samples.
type LatencyStats struct {
	Count int64
	Sum   int64
	Min   int64
	Max   int64
}

func (s *LatencyStats) Add(latencyUS int64) {
	if s.Count == 0 {
		s.Min = latencyUS
		s.Max = latencyUS
	} else {
		if latencyUS < s.Min {
			s.Min = latencyUS
		}
		if latencyUS > s.Max {
			s.Max = latencyUS
		}
	}
	s.Sum += latencyUS
	s.Count++
}

// Average returns Sum/Count, or 0 if no samples have been recorded.
func (s *LatencyStats) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

// PDREntry is the gateway's per-origin packet-delivery-ratio accounting.
type PDREntry struct {
	Origin        uint16
	LastSeq       uint8
	HasSeq        bool
	ExpectedCount uint64
	ReceivedCount uint64
	GapCount      uint64
	Latency       LatencyStats
}

// PDR returns ReceivedCount/ExpectedCount, or 1.0 if nothing is expected yet.
func (e *PDREntry) PDR() float64 {
	if e.ExpectedCount == 0 {
		return 1
	}
	return float64(e.ReceivedCount) / float64(e.ExpectedCount)
}

// Observe folds one received sequence number into the PDR accounting,
// per the gateway sink's modulo-256 gap-detection rule.
func (e *PDREntry) Observe(seq uint8) {
	if !e.HasSeq {
		e.LastSeq = seq
		e.HasSeq = true
		e.ExpectedCount = 1
		e.ReceivedCount = 1
		return
	}
	delta := int(seq) - int(e.LastSeq)
	if delta < 0 {
		delta += 256
	}
	e.ReceivedCount++
	e.ExpectedCount += uint64(delta)
	if delta > 1 {
		e.GapCount += uint64(delta - 1)
	}
	e.LastSeq = seq
}

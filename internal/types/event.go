package types

// PillEvent is a single detected pill removal.
type PillEvent struct {
	DeviceID    string
	Weight      float64
	WeightDelta float64
	// Timestamp is milliseconds since the agent started.
	Timestamp int64
}

// InboundMessage is one message delivered by the broker. Payload is owned by
// the receiver; channels never reuse it.
type InboundMessage struct {
	Topic   string
	Payload []byte
	Length  int
}

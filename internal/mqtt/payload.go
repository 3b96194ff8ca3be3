package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"medibox-agent/internal/types"
)

// MaxEventPayload is the largest event payload the agent will publish.
const MaxEventPayload = 256

type pillEventPayload struct {
	DeviceID    string  `json:"device_id"`
	PillRemoved bool    `json:"pill_removed"`
	Weight      float64 `json:"weight"`
	WeightDiff  float64 `json:"weight_diff"`
	Timestamp   int64   `json:"timestamp"`
}

// EncodePillEvent renders ev as the event topic JSON document. It fails with
// ErrEncodingOverflow when the result would be longer than capacity bytes.
func EncodePillEvent(ev types.PillEvent, capacity int) ([]byte, error) {
	data, err := json.Marshal(pillEventPayload{
		DeviceID:    ev.DeviceID,
		PillRemoved: true,
		Weight:      ev.Weight,
		WeightDiff:  ev.WeightDelta,
		Timestamp:   ev.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pill event: %w", err)
	}
	if len(data) > capacity {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrEncodingOverflow, len(data), capacity)
	}
	return data, nil
}

func DecodePillEvent(data []byte) (types.PillEvent, error) {
	var p pillEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return types.PillEvent{}, fmt.Errorf("unmarshal pill event: %w", err)
	}
	if p.DeviceID == "" {
		return types.PillEvent{}, errors.New("device_id is required")
	}
	if !p.PillRemoved {
		return types.PillEvent{}, errors.New("pill_removed must be true")
	}
	return types.PillEvent{
		DeviceID:    p.DeviceID,
		Weight:      p.Weight,
		WeightDelta: p.WeightDiff,
		Timestamp:   p.Timestamp,
	}, nil
}

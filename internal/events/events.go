package events

import (
	"encoding/json"
	"fmt"
)

const (
	RKMessageStored = "message.stored"
)

// MessageStored is published after the raw message is durably written,
// handing parsing off to the pipeline worker. Only ids travel on the
// wire; the worker rereads the row.
type MessageStored struct {
	MessageID string `json:"message_id"`
	OwnerID   string `json:"owner_id"`
}

func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}

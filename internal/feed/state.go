package feed

import (
	"fmt"
	"time"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

// State is the lifecycle of the single feed connection.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Selection adapter.Selection `json:"selection"`
	State     State             `json:"state"`
	ConnID    string            `json:"connId,omitempty"`
	LastError string            `json:"lastError,omitempty"`
	Since     time.Time         `json:"since"`
}

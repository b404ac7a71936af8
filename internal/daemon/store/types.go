// Package store provides the in-memory session registry for the orion daemon.
package store

import (
	"time"

	"github.com/grovetools/orion/pkg/models"
)

// UpdateType defines what kind of change an Update announces.
type UpdateType string

const (
	UpdateStep           UpdateType = "step"
	UpdateSessionCreated UpdateType = "session_created"
	UpdateSessionClosed  UpdateType = "session_closed"
	UpdateHeapChanged    UpdateType = "heap_changed"
)

// Update represents a change to one session.
type Update struct {
	Type    UpdateType  `json:"type"`
	Token   string      `json:"token"`
	Source  string      `json:"source,omitempty"` // "engine", "watcher", "registry"
	Payload interface{} `json:"payload,omitempty"`
}

// SessionSummary is the listing form of a session.
type SessionSummary struct {
	Token          string                `json:"token"`
	Dir            string                `json:"dir"`
	Created        time.Time             `json:"created"`
	Source         string                `json:"source,omitempty"`
	ExecutionState models.ExecutionState `json:"execState"`
	CurrentLine    int                   `json:"lineNum"`
}

// Package model defines the core domain types for Kotae.
//
// Types use a single closed tag set for agent steps (Thought/Action/
// Observation/Result) and avoid interface{} wherever possible. Steps and
// metric records are value types: once appended to a trace or history they
// are never mutated.
package model

import (
	"time"
)

// StepKind is the closed set of agent reasoning step types.
type StepKind string

const (
	StepThought     StepKind = "thought"
	StepAction      StepKind = "action"
	StepObservation StepKind = "observation"
	StepResult      StepKind = "result"
)

// AgentStep is a single entry in a run's step trace. Immutable once appended.
// Timestamp is seconds since the Unix epoch, fractional — the wire format the
// UI consumes directly.
type AgentStep struct {
	Kind      StepKind `json:"type"`
	Content   string   `json:"content"`
	Timestamp float64  `json:"timestamp"`
}

// NewStep creates a step stamped with the current time.
func NewStep(kind StepKind, content string) AgentStep {
	return AgentStep{
		Kind:      kind,
		Content:   content,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// AgentRun is the transient state of one query execution. Steps is
// append-only within a run; a new run replaces the previous one wholesale.
type AgentRun struct {
	Query        string      `json:"current_query"`
	Steps        []AgentStep `json:"steps"`
	Iterations   int         `json:"iterations"`
	IsProcessing bool        `json:"is_processing"`
}

// Document is a titled text document in the knowledge base. The title is the
// unique key; content is immutable once snapshotted into a query.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

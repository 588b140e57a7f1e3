package usage

import (
	"context"
	"time"
)

// Kind is what an event measures.
type Kind string

const (
	KindChatTokens    Kind = "chat_tokens"
	KindImages        Kind = "images"
	KindTranscription Kind = "transcription_seconds"
)

// Event is one billable action by a user.
type Event struct {
	UserID   int64
	UserName string
	Kind     Kind
	Amount   int     // tokens, images or seconds of audio
	Cost     float64 // USD
	At       time.Time
}

// Totals aggregates events over a time range.
type Totals struct {
	Tokens               int     `json:"tokens"`
	Images               int     `json:"images"`
	TranscriptionSeconds int     `json:"transcription_seconds"`
	Cost                 float64 `json:"cost"`
}

// Store persists usage events.
type Store interface {
	Add(ctx context.Context, e Event) error
	// Sum totals the events of userID with from <= At < to. A zero from
	// or to leaves that side open.
	Sum(ctx context.Context, userID int64, from, to time.Time) (Totals, error)
	Close() error
}

// Package events carries progression notifications from the services to the
// websocket hub, the bracket cache and the standings archive.
package events

import (
	"context"
	"time"
)

const TopicProgression = "league.progression"

type Type string

const (
	RoundGenerated       Type = "round_generated"
	RoundProgressed      Type = "round_progressed"
	StageAdvanced        Type = "stage_advanced"
	RoundReset           Type = "round_reset"
	CategorySynchronized Type = "category_synchronized"
	MatchResultRecorded  Type = "match_result_recorded"
	MatchCancelled       Type = "match_cancelled"
	BracketChanged       Type = "bracket_changed"
	ChampionCrowned      Type = "champion_crowned"
)

type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	CategoryID int       `json:"category_id"`
	RoundID    int       `json:"round_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Handler consumes one delivered event. A returned error nacks the message.
type Handler func(ctx context.Context, evt Event) error

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

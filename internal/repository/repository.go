package repository

import (
	"context"
	"encoding/json"
	"time"

	"raywatch/internal/domain"
)

// Charger is the journal's view of one charger
type Charger struct {
	IP        string          `json:"ip"`
	Hostname  string          `json:"hostname"`
	Present   bool            `json:"present"`
	Status    json.RawMessage `json:"status,omitempty"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
	RemovedAt *time.Time      `json:"removed_at,omitempty"`
}

// EventRecord is one journaled event
type EventRecord struct {
	ID        int64            `json:"id"`
	CycleID   string           `json:"cycle_id,omitempty"`
	Type      domain.EventType `json:"event"`
	IP        string           `json:"ip"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

// Journal records the event stream and answers queries about it
type Journal interface {
	RecordEvent(ctx context.Context, cycleID string, ev domain.Event) error
	ListChargers(ctx context.Context) ([]Charger, error)
	RecentEvents(ctx context.Context, limit int) ([]EventRecord, error)
	Close() error
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Action says what happened to an expense.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// ExpenseEvent announces a committed expense write. It carries enough to
// locate the affected periods; consumers read amounts from the store.
type ExpenseEvent struct {
	ID           int64     `json:"id"`
	Action       Action    `json:"action"`
	Date         string    `json:"date"`
	PreviousDate string    `json:"previous_date,omitempty"`
	Category     string    `json:"category"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewExpenseEvent builds an event for e stamped with the current time.
func NewExpenseEvent(action Action, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		ID:        e.ID,
		Action:    action,
		Date:      e.Date.String(),
		Category:  core.NormalizeCategory(e.Category),
		Timestamp: time.Now().UTC(),
	}
}

// Dates returns the parsed event date and, for moves, the previous date.
func (m *ExpenseEvent) Dates() ([]core.Date, error) {
	d, err := core.ParseDate(m.Date)
	if err != nil {
		return nil, fmt.Errorf("event %d date %q: %w", m.ID, m.Date, err)
	}
	out := []core.Date{d}
	if m.PreviousDate != "" && m.PreviousDate != m.Date {
		prev, err := core.ParseDate(m.PreviousDate)
		if err != nil {
			return nil, fmt.Errorf("event %d previous date %q: %w", m.ID, m.PreviousDate, err)
		}
		out = append(out, prev)
	}
	return out, nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionCreated, ActionUpdated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}

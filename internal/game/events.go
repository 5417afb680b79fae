package game

import "time"

// EventKind structurally separates phase-boundary announcements from ordinary
// narrative lines. The display layer keys on this field; engine logic never
// sniffs message text.
type EventKind string

const (
	EventAnnouncement EventKind = "announcement"
	EventNarrative    EventKind = "narrative"
)

// Event is one entry of the canonical game transcript. The log is append-only
// and its insertion order is the authoritative ordering of the game.
type Event struct {
	Day     int       `json:"day"`
	Phase   string    `json:"phase"`
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
}

// appendEvent records a game-visible occurrence tagged with the current day
// and phase.
func (s *GameState) appendEvent(kind EventKind, message string) {
	s.Events = append(s.Events, Event{
		Day:     s.DayCount,
		Phase:   string(s.Phase),
		Kind:    kind,
		Message: message,
	})
	s.UpdatedAt = time.Now()
}

// RecentMessages returns the last n public event messages in order, for
// prompt context.
func (s *GameState) RecentMessages(n int) []string {
	start := len(s.Events) - n
	if start < 0 {
		start = 0
	}
	msgs := make([]string, 0, len(s.Events)-start)
	for _, e := range s.Events[start:] {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

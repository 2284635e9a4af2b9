package domain

import "time"

const DefaultQueryLimit = 20

// MessageQuery selects a window of a room's history. A zero Before disables
// the time filter.
type MessageQuery struct {
	Search string
	Before time.Time
	Limit  int
}

// Apply runs the filter pipeline over msgs, which must be in chronological
// order: text match, then strict before-timestamp, then the newest Limit
// entries, still oldest first.
func (q MessageQuery) Apply(msgs []Message) []Message {
	if q.Limit <= 0 {
		return []Message{}
	}
	selected := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Matches(q.Search) {
			continue
		}
		if !q.Before.IsZero() && !m.Timestamp.Before(q.Before) {
			continue
		}
		selected = append(selected, m)
	}
	if len(selected) > q.Limit {
		selected = selected[len(selected)-q.Limit:]
	}
	return selected
}

package form

import (
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds the undo log. Oldest entries are pruned first.
const DefaultHistoryLimit = 50

// EntryType classifies a history entry.
type EntryType string

const (
	EntryFieldEdit         EntryType = "field-edit"
	EntryAcceptSuggestion  EntryType = "accept-suggestion"
	EntryDismissSuggestion EntryType = "dismiss-suggestion"
	EntryToggleValue       EntryType = "toggle-value"
	EntryBulkAccept        EntryType = "bulk-accept"
)

// Entry is one state-mutating user action. Each entry carries a full values
// snapshot taken after the action; undo restores the snapshot below the
// cursor rather than inverting operations.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        EntryType `json:"type"`
	Fields      []string  `json:"fields"`
	Description string    `json:"description"`

	snapshot map[string]any
}

// historyLog is a classic linear undo/redo log: appending while the cursor
// sits before the end truncates the "future" entries first.
type historyLog struct {
	limit   int
	entries []Entry
	cursor  int
}

func newHistoryLog(limit int) *historyLog {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &historyLog{limit: limit, cursor: -1}
}

func (h *historyLog) append(t EntryType, fields []string, description string, snapshot map[string]any) {
	if h.cursor < len(h.entries)-1 {
		h.entries = h.entries[:h.cursor+1]
	}
	h.entries = append(h.entries, Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Type:        t,
		Fields:      fields,
		Description: description,
		snapshot:    snapshot,
	})
	if len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		h.entries = h.entries[drop:]
	}
	h.cursor = len(h.entries) - 1
}

// undo moves the cursor back one entry and returns the values snapshot to
// restore. Below entry zero the caller's initial values apply, signalled by
// a nil snapshot with ok=true.
func (h *historyLog) undo() (snapshot map[string]any, ok bool) {
	if h.cursor < 0 {
		return nil, false
	}
	h.cursor--
	if h.cursor < 0 {
		return nil, true
	}
	return h.entries[h.cursor].snapshot, true
}

func (h *historyLog) redo() (snapshot map[string]any, ok bool) {
	if h.cursor >= len(h.entries)-1 {
		return nil, false
	}
	h.cursor++
	return h.entries[h.cursor].snapshot, true
}

func (h *historyLog) canUndo() bool { return h.cursor >= 0 }

func (h *historyLog) canRedo() bool { return h.cursor < len(h.entries)-1 }

func (h *historyLog) list() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *historyLog) clear() {
	h.entries = nil
	h.cursor = -1
}

package state

import "encoding/json"

// HistoryLimit is the default capacity of a session's history ring.
const HistoryLimit = 1000

// HistoryEntry records one traversal: the node the choice was made
// from, the node it led to, and the choice text.
type HistoryEntry struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Choice string `json:"choice"`
}

// History is a bounded ring of traversal entries. Capacity is fixed at
// construction; pushing onto a full ring drops the oldest entry. The
// bound holds regardless of save/load, because deserialization rebuilds
// the ring through Push.
type History struct {
	buf   []HistoryEntry
	head  int // index of oldest entry
	count int
}

// NewHistory returns an empty ring with the given capacity. A
// non-positive capacity falls back to HistoryLimit.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistoryLimit
	}
	return &History{buf: make([]HistoryEntry, capacity)}
}

// Push appends an entry, evicting the oldest if the ring is full.
func (h *History) Push(e HistoryEntry) {
	tail := (h.head + h.count) % len(h.buf)
	h.buf[tail] = e
	if h.count == len(h.buf) {
		h.head = (h.head + 1) % len(h.buf)
	} else {
		h.count++
	}
}

// Len returns the number of entries held.
func (h *History) Len() int { return h.count }

// Cap returns the ring's fixed capacity.
func (h *History) Cap() int { return len(h.buf) }

// Entries returns the held entries in order, oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, h.count)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(h.head+i)%len(h.buf)])
	}
	return out
}

// MarshalJSON serializes the ring as a plain ordered array.
func (h *History) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// UnmarshalJSON rebuilds the ring from an ordered array, keeping only
// the newest entries if the array exceeds capacity.
func (h *History) UnmarshalJSON(data []byte) error {
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if h.buf == nil {
		h.buf = make([]HistoryEntry, HistoryLimit)
	}
	h.head, h.count = 0, 0
	for _, e := range entries {
		h.Push(e)
	}
	return nil
}

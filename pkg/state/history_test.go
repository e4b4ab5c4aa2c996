package state

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

func TestHistory_PushEvictsOldest(t *testing.T) {
	h := NewHistory(3)

	for i := 1; i <= 5; i++ {
		h.Push(HistoryEntry{From: fmt.Sprintf("n%d", i), To: fmt.Sprintf("n%d", i+1), Choice: "go"})
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	got := h.Entries()
	wantFrom := []string{"n3", "n4", "n5"}
	for i, e := range got {
		if e.From != wantFrom[i] {
			t.Errorf("Entries()[%d].From = %q, want %q", i, e.From, wantFrom[i])
		}
	}
}

func TestHistory_BoundHoldsUnderLongWalk(t *testing.T) {
	h := NewHistory(HistoryLimit)

	for i := 0; i < HistoryLimit+250; i++ {
		h.Push(HistoryEntry{From: "a", To: "b", Choice: "loop"})
		if h.Len() > HistoryLimit {
			t.Fatalf("Len() = %d after %d pushes, exceeds %d", h.Len(), i+1, HistoryLimit)
		}
	}
	if h.Len() != HistoryLimit {
		t.Errorf("Len() = %d, want %d", h.Len(), HistoryLimit)
	}
}

func TestHistory_JSONRoundTrip(t *testing.T) {
	h := NewHistory(4)
	h.Push(HistoryEntry{From: "dock", To: "market", Choice: "Walk in"})
	h.Push(HistoryEntry{From: "market", To: "alley", Choice: "Slip away"})

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back History
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Entries(), h.Entries()) {
		t.Errorf("round trip changed entries: %v != %v", back.Entries(), h.Entries())
	}
}

func TestHistory_UnmarshalKeepsNewestWhenOverCapacity(t *testing.T) {
	entries := make([]HistoryEntry, HistoryLimit+10)
	for i := range entries {
		entries[i] = HistoryEntry{From: fmt.Sprintf("n%d", i), To: "x", Choice: "c"}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.Len() != HistoryLimit {
		t.Fatalf("Len() = %d, want %d", h.Len(), HistoryLimit)
	}
	if first := h.Entries()[0].From; first != "n10" {
		t.Errorf("oldest retained entry = %q, want n10", first)
	}
}

func TestSession_RecordChoiceDeduplicates(t *testing.T) {
	s := NewSession()

	s.RecordChoice("dock", "Walk in")
	s.RecordChoice("dock", "Walk in")
	s.RecordChoice("dock", "Slip away")

	if !s.ChoiceTaken("dock", "Walk in") {
		t.Error("ChoiceTaken should report a recorded choice")
	}
	if s.ChoiceTaken("market", "Walk in") {
		t.Error("ChoiceTaken should be per node")
	}
	if got := len(s.ChoicesMade["dock"]); got != 2 {
		t.Errorf("ChoicesMade[dock] has %d entries, want 2", got)
	}
}

func TestSession_NormalizeRepairsNilFields(t *testing.T) {
	s := &Session{CurrentNode: "dock"}
	s.Normalize()

	if s.History == nil || s.History.Cap() != HistoryLimit {
		t.Error("Normalize should install a full-capacity history ring")
	}
	if s.ChoicesMade == nil {
		t.Error("Normalize should install a choices map")
	}
}

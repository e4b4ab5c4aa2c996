package state

// Session is the per-run navigation record: where the player is, where
// they started, and a bounded trail of how they got here.
type Session struct {
	CurrentNode string `json:"current_node"`
	StartID     string `json:"start_id"`
	WorldSeed   int64  `json:"world_seed"`
	ActiveArea  string `json:"active_area"`

	History *History `json:"history"`

	// ChoicesMade records which choice texts have already been taken
	// from each node this run. Display-only: it marks visited choices
	// and never gates anything.
	ChoicesMade map[string][]string `json:"choices_made,omitempty"`
}

// NewSession returns a session with an empty bounded history.
func NewSession() *Session {
	return &Session{
		History:     NewHistory(HistoryLimit),
		ChoicesMade: map[string][]string{},
	}
}

// Normalize repairs nil fields after deserialization.
func (s *Session) Normalize() {
	if s.History == nil {
		s.History = NewHistory(HistoryLimit)
	}
	if s.ChoicesMade == nil {
		s.ChoicesMade = map[string][]string{}
	}
}

// RecordChoice marks a choice text as taken from a node.
func (s *Session) RecordChoice(nodeID, choiceText string) {
	taken := s.ChoicesMade[nodeID]
	for _, t := range taken {
		if t == choiceText {
			return
		}
	}
	s.ChoicesMade[nodeID] = append(taken, choiceText)
}

// ChoiceTaken reports whether a choice text was already taken from a
// node this run.
func (s *Session) ChoiceTaken(nodeID, choiceText string) bool {
	for _, t := range s.ChoicesMade[nodeID] {
		if t == choiceText {
			return true
		}
	}
	return false
}

package chat

// TurnV1 is one message in a conversation. The persisted conversation is a
// JSON array of these, in chronological order:
//
//	[{"role":"user","content":"What is a closure?"},
//	 {"role":"assistant","content":"A closure is ..."}]
//
// Incomplete marks an assistant turn whose stream ended without a clean
// end-of-stream; its Content is whatever arrived before the failure.
type TurnV1 struct {
	Role       RoleV1 `json:"role"`
	Content    string `json:"content"`
	Incomplete bool   `json:"incomplete,omitempty"`
}

// CloneTurns returns a copy of turns that shares no backing array.
func CloneTurns(turns []TurnV1) []TurnV1 {
	if turns == nil {
		return nil
	}
	out := make([]TurnV1, len(turns))
	copy(out, turns)
	return out
}

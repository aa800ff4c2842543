package domain

import (
	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
)

// Conversation is the ordered list of turns the shell shows and persists.
// Turns are only appended; the whole list is cleared at once.
//
// Conversation is not safe for concurrent use; the shell service guards it.
type Conversation struct {
	turns []contractchat.TurnV1

	// gen changes on Clear and Replace so handles to the old list go stale.
	gen int
}

func NewConversation(turns []contractchat.TurnV1) *Conversation {
	return &Conversation{turns: contractchat.CloneTurns(turns)}
}

// Turns returns a copy of the current turns.
func (c *Conversation) Turns() []contractchat.TurnV1 {
	return contractchat.CloneTurns(c.turns)
}

func (c *Conversation) Len() int { return len(c.turns) }

func (c *Conversation) AppendUser(content string) {
	c.turns = append(c.turns, contractchat.TurnV1{Role: contractchat.RoleUser, Content: content})
}

// BeginAssistant appends an empty assistant turn and returns the only handle
// allowed to grow it.
func (c *Conversation) BeginAssistant() *InProgress {
	c.turns = append(c.turns, contractchat.TurnV1{Role: contractchat.RoleAssistant})
	return &InProgress{conv: c, index: len(c.turns) - 1, gen: c.gen}
}

func (c *Conversation) Clear() {
	c.turns = nil
	c.gen++
}

// Replace swaps in a restored list, dropping turns with unknown roles.
func (c *Conversation) Replace(turns []contractchat.TurnV1) {
	out := make([]contractchat.TurnV1, 0, len(turns))
	for _, t := range turns {
		if t.Role.Valid() {
			out = append(out, t)
		}
	}
	c.turns = out
	c.gen++
}

// InProgress is the handle to the assistant turn currently being streamed.
// After Clear or Replace it is stale and every call is a no-op returning false.
type InProgress struct {
	conv  *Conversation
	index int
	gen   int
	done  bool
}

// Live reports whether the handle still points at its turn.
func (h *InProgress) Live() bool {
	return h != nil && !h.done && h.conv.gen == h.gen && h.index < len(h.conv.turns)
}

// Append adds fragment to the turn's content.
func (h *InProgress) Append(fragment string) bool {
	if !h.Live() {
		return false
	}
	h.conv.turns[h.index].Content += fragment
	return true
}

// Content is the text streamed so far.
func (h *InProgress) Content() string {
	if !h.Live() {
		return ""
	}
	return h.conv.turns[h.index].Content
}

// Finish closes the handle. With incomplete set the turn keeps its partial text
// and is flagged so renderers and later sessions can tell it was cut short.
func (h *InProgress) Finish(incomplete bool) bool {
	if !h.Live() {
		return false
	}
	if incomplete {
		h.conv.turns[h.index].Incomplete = true
	}
	h.done = true
	return true
}

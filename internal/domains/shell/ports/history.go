package ports

import (
	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
)

// HistoryKey is the storage key of the persisted conversation.
const HistoryKey = "chatHistory"

// HistoryStore persists the conversation on the local machine.
//
// Save always overwrites the whole list; there are no partial updates.
// Load on an empty store returns (nil, nil).
type HistoryStore interface {
	Load() ([]contractchat.TurnV1, error)
	Save(turns []contractchat.TurnV1) error
	Remove() error
	Close() error
}

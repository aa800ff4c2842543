package chat

// RoleV1 is the author of a turn.
type RoleV1 string

const (
	RoleUser      RoleV1 = "user"
	RoleAssistant RoleV1 = "assistant"
	RoleSystem    RoleV1 = "system"
)

// Valid reports whether r may appear in a persisted conversation.
// System turns are only ever sent upstream, never stored.
func (r RoleV1) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

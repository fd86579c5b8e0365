package parley

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role the conversation understands.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

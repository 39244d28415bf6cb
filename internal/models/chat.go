package models

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// Valid reports whether the role is supported by the language model.
func (r ChatRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage is a single turn in a conversation.
type ChatMessage struct {
	Role    ChatRole `json:"role" validate:"required,oneof=system user assistant"`
	Content string   `json:"content" validate:"required"`
}

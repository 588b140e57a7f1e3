package agent

import "errors"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// ErrNoChoices is returned when the model answers without any choice.
var ErrNoChoices = errors.New("no choices returned from model")

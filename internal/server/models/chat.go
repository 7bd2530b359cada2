package models

// Chat is one assistant conversation thread.
type Chat struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	ExternalID *string `json:"externalId,omitempty"`
	Timestamps
}

func (c Chat) RowID() string     { return c.ID }
func (c Chat) RowUserID() string { return c.UserID }

// ChatForm is the create shape for a chat.
type ChatForm struct {
	Title string `json:"title" validate:"required,max=200"`
}

// ChatPatch holds partial updates; nil fields are left untouched.
type ChatPatch struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
}

// Message roles in a chat.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn inside a chat.
type Message struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
	Role   string `json:"role"`
	Content string `json:"content"`
	Timestamps
}

func (m Message) RowID() string     { return m.ID }
func (m Message) RowUserID() string { return m.UserID }

// MessageForm is the create shape for a message.
type MessageForm struct {
	ChatID  string `json:"chatId" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// MessagePatch holds partial updates; nil fields are left untouched.
type MessagePatch struct {
	Content *string `json:"content"`
}

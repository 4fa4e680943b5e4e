package store

import "time"

type User struct {
	ID        int64     `json:"id"`
	GoogleID  string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"profile_pic"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type Chat struct {
	ID        string    `json:"id"` // UUID
	Name      string    `json:"name"`
	AIEnabled bool      `json:"ai_enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSummary is a chat as it appears in a user's chat list, carrying a
// preview of the latest message.
type ChatSummary struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	AIEnabled       bool       `json:"ai_enabled"`
	LastMessage     string     `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

type SenderKind string

const (
	SenderUser SenderKind = "user"
	SenderAI   SenderKind = "ai"
)

// Sender is a tagged variant: either a human user (Kind == SenderUser with
// UserID set) or the automated participant (Kind == SenderAI, UserID zero).
type Sender struct {
	Kind   SenderKind `json:"kind"`
	UserID int64      `json:"user_id,omitempty"`
}

func HumanSender(userID int64) Sender {
	return Sender{Kind: SenderUser, UserID: userID}
}

func AISender() Sender {
	return Sender{Kind: SenderAI}
}

func (s Sender) IsAI() bool {
	return s.Kind == SenderAI
}

type Message struct {
	// Seq is the store-assigned insertion order. It breaks ties between
	// messages that share a timestamp.
	Seq       int64     `json:"-"`
	ID        string    `json:"id"` // UUID
	ChatID    string    `json:"chat_id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url"`
	Timestamp time.Time `json:"timestamp"`
}

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

package entity

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageVoice MessageType = "voice"
	MessageImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	return t == MessageText || t == MessageVoice || t == MessageImage
}

// Message is append-only; only Read flips, and only from false to true.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"sender_id"`
	ReceiverID string      `json:"receiver_id"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
	MediaURL   string      `json:"media_url,omitempty"`
	ProductID  string      `json:"product_id,omitempty"`
	Read       bool        `json:"read"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OtherParty returns the participant that is not viewerID.
func (m *Message) OtherParty(viewerID string) string {
	if m.SenderID == viewerID {
		return m.ReceiverID
	}
	return m.SenderID
}

func (m *Message) IsUnreadFor(viewerID string) bool {
	return m.ReceiverID == viewerID && !m.Read
}

// Newer orders messages by created_at, then by id so equal timestamps still sort deterministically.
func (m *Message) Newer(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.After(other.CreatedAt)
	}
	return m.ID > other.ID
}

type ProductContext struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Conversation is derived from messages and never persisted.
type Conversation struct {
	OtherPartyID   string          `json:"other_party_id"`
	OtherParty     *ProfileSummary `json:"other_party,omitempty"`
	LastMessage    *Message        `json:"last_message"`
	UnreadCount    int             `json:"unread_count"`
	ProductContext *ProductContext `json:"product_context,omitempty"`
}

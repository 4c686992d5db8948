package model

import "time"

const (
	MsgCollection     = "message"
	ConvCollection    = "conversation"
	ReceiptCollection = "receipt"
	UserCollection    = "user"
)

// MessageModel is the persisted message. Permanent ids carry the "m_"
// prefix so clients can tell them apart from their local temp ids.
type MessageModel struct {
	MessageID      string    `bson:"message_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	SenderName     string    `bson:"sender_name" json:"senderName,omitempty"`
	SenderImage    string    `bson:"sender_image" json:"senderImage,omitempty"`
	Content        string    `bson:"content" json:"content"`
	CreatedAt      time.Time `bson:"created_at" json:"timestamp"`
}

// Conversation holds the member list the fan-out resolves against.
type Conversation struct {
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	Name           string    `bson:"name" json:"name,omitempty"`
	MemberIDs      []string  `bson:"member_ids" json:"memberIds"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

func (c *Conversation) HasMember(userID string) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ReceiptModel is the durable copy of a ledger receipt.
// Unique index on (message_id, user_id).
type ReceiptModel struct {
	MessageID      string    `bson:"message_id" json:"messageId"`
	UserID         string    `bson:"user_id" json:"userId"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	Status         int       `bson:"status" json:"status"` // receipt.Status numeric value
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
}

// UserModel is the sender snapshot source.
type UserModel struct {
	UserID   string `bson:"user_id" json:"id"`
	Name     string `bson:"name" json:"name"`
	ImageURL string `bson:"image_url" json:"image,omitempty"`
}

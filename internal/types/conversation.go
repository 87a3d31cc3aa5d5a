package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Title     string    `gorm:"column:title;not null;default:'New Conversation'" json:"title"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID     `gorm:"type:uuid;not null;index;uniqueIndex:idx_messages_client_msg" json:"conversation_id"`
	Conversation    *Conversation `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"conversation,omitempty"`
	Role            string        `gorm:"column:role;not null" json:"role"`
	Content         string        `gorm:"column:content;type:text;not null" json:"content"`
	ClientMessageID *string       `gorm:"column:client_message_id;uniqueIndex:idx_messages_client_msg" json:"client_message_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

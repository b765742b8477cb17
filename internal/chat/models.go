package chat

import (
	"time"

	"github.com/suPer8Hu/chat-relay/internal/common"
	"gorm.io/gorm"
)

const (
	TableSessions     = "chats"
	TableMessages     = "messages"
	TableInteractions = "chatbot_logs"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	// RoleDocumentData marks a message whose content is JSON text of a
	// structured document-generation input.
	RoleDocumentData = "document_data"
)

// Session is inserted empty; only the generated id and timestamp are set.
type Session struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Session) TableName() string { return TableSessions }

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID != "" {
		return nil
	}
	id, err := common.NewULID()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// Message.ChatID is not a foreign key; messages may reference any id, of any
// length. The index prefix length only applies on MySQL.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID    string    `gorm:"type:text;index:idx_messages_chat_created,priority:1,length:191;not null" json:"chat_id"`
	Role      string    `gorm:"type:varchar(32);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return TableMessages }

type InteractionLog struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserQuery       string    `gorm:"column:user_query;type:text;not null" json:"user_query"`
	ChatbotResponse string    `gorm:"column:chatbotresponse;type:text;not null" json:"chatbotresponse"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	RequestID       string    `gorm:"type:varchar(36);index" json:"request_id"`
}

func (InteractionLog) TableName() string { return TableInteractions }

// Models lists every table this package writes, for auto-migration.
func Models() []any {
	return []any{&Session{}, &Message{}, &InteractionLog{}}
}

package queue

const (
	TypeConversationArchive = "conversation:archive"
)

type ConversationArchivePayload struct {
	UserID   string `json:"user_id"`
	Messages string `json:"messages"` // JSON-encoded []models.ChatMessage
}

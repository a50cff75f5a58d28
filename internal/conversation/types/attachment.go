package types

import "time"

// Attachment is inert file metadata hanging off a conversation. Nothing in
// the turn pipeline reads it; it exists for clients to round-trip.
type Attachment struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	FileName       string    `json:"file_name"`
	MimeType       string    `json:"mime_type"`
	SizeBytes      int64     `json:"size_bytes"`
	URL            string    `json:"url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateAttachmentRequest registers attachment metadata
type CreateAttachmentRequest struct {
	FileName  string `json:"file_name" binding:"required"`
	MimeType  string `json:"mime_type" binding:"required"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url"`
}

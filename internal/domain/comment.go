package domain

import "time"

// Comment is a message in a ticket thread. Internal comments are staff-only
// and the flag never changes after creation.
type Comment struct {
	ID          string
	TicketID    string
	AuthorID    string
	Content     string
	Internal    bool
	CreatedAt   time.Time
	Author      *Profile
	Attachments []Attachment
}

// Attachment stores metadata for an uploaded file.
type Attachment struct {
	ID          string
	TicketID    *string
	CommentID   *string
	Filename    string
	FilePath    string
	URL         string
	FileSize    int64
	ContentType string
	UploadedBy  string
	CreatedAt   time.Time
}

// Upload is a file awaiting storage.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Package models defines server-side data models persisted in the database
// and the value types exchanged between services and transports.
package models

import "time"

// FileCategory is the coarse file kind derived from a note's extension.
type FileCategory string

const (
	CategoryPDF      FileCategory = "pdf"
	CategoryDocument FileCategory = "document"
	CategoryImage    FileCategory = "image"
	CategoryOther    FileCategory = "other"
)

// Note describes an uploaded academic file. The bytes live in the blob store
// under StorageKey; LikesCount and DislikesCount mirror the note's reactions.
type Note struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	FileName       string       `json:"file_name"`
	StorageKey     string       `json:"file_key"`
	FileType       FileCategory `json:"file_type"`
	FileSize       int64        `json:"file_size"`
	CourseCode     string       `json:"course_code"`
	CourseName     *string      `json:"course_name,omitempty"`
	Year           int          `json:"year"`
	InstructorName string       `json:"doctor_name"`
	Description    *string      `json:"description,omitempty"`
	UploaderID     int64        `json:"uploader_id"`
	LikesCount     int64        `json:"likes_count"`
	DislikesCount  int64        `json:"dislikes_count"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NoteMeta is the caller-supplied descriptive part of a note.
type NoteMeta struct {
	Title          string  `json:"title" form:"title"`
	CourseCode     string  `json:"course_code" form:"course_code"`
	CourseName     *string `json:"course_name" form:"course_name"`
	Year           int     `json:"year" form:"year"`
	InstructorName string  `json:"doctor_name" form:"doctor_name"`
	Description    *string `json:"description" form:"description"`
}

// NoteUpdate is a partial update: nil fields are left untouched. A JSON null
// decodes to nil, so CourseName and Description cannot be cleared through an
// update, only replaced.
type NoteUpdate struct {
	Title          *string `json:"title"`
	CourseCode     *string `json:"course_code"`
	CourseName     *string `json:"course_name"`
	Year           *int    `json:"year"`
	InstructorName *string `json:"doctor_name"`
	Description    *string `json:"description"`
}

// IsEmpty reports whether the update sets no field at all.
func (u NoteUpdate) IsEmpty() bool {
	return u.Title == nil && u.CourseCode == nil && u.CourseName == nil &&
		u.Year == nil && u.InstructorName == nil && u.Description == nil
}

// NoteFilter narrows a note listing. Zero values mean "no filter".
type NoteFilter struct {
	CourseCode string
	Year       int
	Search     string
}

// NoteView is a Note as shown to a particular caller.
type NoteView struct {
	Note
	// DownloadURL is a presigned GET URL; empty when it could not be issued.
	DownloadURL string `json:"download_url,omitempty"`
	// UserReaction is the caller's own vote, nil when they have not reacted.
	UserReaction *Polarity `json:"user_like_status"`
}

// UploadInput is the input of a note upload. Exactly one of Content and
// StorageKey is set: Content for a direct upload, StorageKey when the client
// already put the object through a presigned URL.
type UploadInput struct {
	Meta        NoteMeta
	FileName    string
	ContentType string
	Content     []byte
	StorageKey  string
}

// PresignedUpload tells a client where to PUT a file before registering it.
type PresignedUpload struct {
	StorageKey string    `json:"file_key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

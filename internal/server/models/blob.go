package models

import "time"

// BlobObject is what the blob store reports about a stored object.
type BlobObject struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// OrphanBlob is a stored object that no note references.
type OrphanBlob struct {
	StorageKey  string     `json:"file_key"`
	DisplayName string     `json:"name"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Size        *int64     `json:"size,omitempty"`
}

// OrphanReport is the soft-failing result of an orphan scan: when the blob
// store cannot be listed, Orphans is empty and Error explains why.
type OrphanReport struct {
	Orphans []OrphanBlob `json:"orphans"`
	Error   string       `json:"error,omitempty"`
}

// RecoverInput attaches an orphan blob to a new note. FileName defaults to
// the key's display name.
type RecoverInput struct {
	StorageKey string   `json:"file_key"`
	FileName   string   `json:"file_name"`
	Meta       NoteMeta `json:"meta"`
}

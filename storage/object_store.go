package storage

import "context"

// StoredObject is one object written to the archive bucket.
type StoredObject struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	ETag string `json:"etag,omitempty"`
	Size int64  `json:"size"`
}

// ObjectStore is the bucket standings documents are archived to. Keys are
// written whole; a second put on the same key replaces the object.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (*StoredObject, error)
	ObjectURL(key string) string
}

package models

import (
	"encoding/json"
	"time"
)

// Format is a stored, named format configuration. Config holds the raw
// discriminated JSON; it is parsed by the brackets package.
type Format struct {
	ID        int             `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Type      string          `json:"type" db:"type"`
	Config    json.RawMessage `json:"config" db:"config"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

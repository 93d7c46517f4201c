package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Story is one planning document. The full story state lives in Document
// as JSONB; Title is denormalized for listings.
type Story struct {
	ID        string
	OwnerID   string
	Title     string
	Document  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StorySummary is the listing row: metadata plus the per-section
// completion map pulled out of the document.
type StorySummary struct {
	ID        string
	Title     string
	Genre     []string
	Progress  map[string]int
	UpdatedAt time.Time
}

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
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionRecord is the persisted form of a plan session: the full aggregate
// as a JSON snapshot plus the columns worth querying on.
type SessionRecord struct {
	ID        string
	UserID    string
	Status    string
	Score     int
	Snapshot  json.RawMessage
	UpdatedAt time.Time
}

// AnswerRow duplicates one current answer into a relational row so Postgres
// full-text search can index it. Rewritten wholesale on every session save.
type AnswerRow struct {
	SessionID  string
	SectionID  string
	QuestionID string
	Prompt     string
	Body       string
	UpdatedAt  time.Time
}

// ExportRecord logs a produced export artifact and where it was archived.
type ExportRecord struct {
	ID        string
	SessionID string
	Format    string
	ObjectKey string
	Forced    bool
	CreatedAt time.Time
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// Purchase is one attempt by a user to unlock a story. At most one PENDING or
// SUCCESS purchase exists per (UserID, StoryID); FAILED rows accumulate.
type Purchase struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID    string       `json:"order_id" gorm:"type:text;not null"`
	UserID     string       `json:"user_id" gorm:"type:text;not null"`
	StoryID    string       `json:"story_id" gorm:"type:text;not null"`
	StoryName  string       `json:"story_name" gorm:"type:text;not null"`
	Amount     int64        `json:"amount" gorm:"not null"`
	Status     Status       `json:"status" gorm:"type:text;not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

func (Purchase) TableName() string { return "purchases" }

type CreatePendingRequest struct {
	UserID    string
	StoryID   string
	StoryName string
	Amount    int64
}

// ResolveResult reports whether a resolve call changed the record. Applied is
// false when the purchase was already terminal; Purchase is the stored state.
type ResolveResult struct {
	Purchase *Purchase
	Applied  bool
}

// ListByStatusRequest selects purchases in one status created before
// CreatedBefore, oldest first. Status defaults to PENDING.
type ListByStatusRequest struct {
	Status        Status
	CreatedBefore time.Time
	Limit         int
}

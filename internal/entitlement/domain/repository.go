package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, purchase *Purchase) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Purchase, error)
	FindActive(ctx context.Context, db *gorm.DB, userID, storyID string) (*Purchase, error)
	// UpdateStatusIfPending returns the number of rows changed; zero means the
	// order is unknown or already terminal.
	UpdateStatusIfPending(ctx context.Context, db *gorm.DB, orderID string, status Status, resolvedAt time.Time) (int64, error)
	ListPaidStoryIDs(ctx context.Context, db *gorm.DB, userID string, storyIDs []string) ([]string, error)
	ExistsPaid(ctx context.Context, db *gorm.DB, userID, storyID string) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Purchase, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status Status, createdBefore time.Time, limit int) ([]Purchase, error)
}

package domain

import "context"

//go:generate mockgen -source=service.go -destination=mocks/store.go -package=mocks

// Store is the persistent record of purchases and the only authority on
// whether a user has paid for a story.
type Store interface {
	// CreatePending records a new PENDING purchase with a fresh order id.
	// Returns ErrActivePurchaseExists when the user already has a PENDING or
	// SUCCESS purchase for the story.
	CreatePending(ctx context.Context, req CreatePendingRequest) (*Purchase, error)
	// Resolve moves a PENDING purchase to a terminal status. Resolving a
	// terminal purchase is a no-op; an unknown order returns ErrPurchaseNotFound.
	Resolve(ctx context.Context, orderID string, status Status) (*ResolveResult, error)
	// ListPaidStoryIDs returns the subset of storyIDs the user has a SUCCESS
	// purchase for, in one query.
	ListPaidStoryIDs(ctx context.Context, userID string, storyIDs []string) (map[string]struct{}, error)
	HasPaid(ctx context.Context, userID, storyID string) (bool, error)

	FindByOrderID(ctx context.Context, orderID string) (*Purchase, error)
	ListByUser(ctx context.Context, userID string) ([]Purchase, error)
	ListByStatus(ctx context.Context, req ListByStatusRequest) ([]Purchase, error)
}

package domain

import "context"

// Service joins catalog stories with the caller's entitlements.
type Service interface {
	ListStories(ctx context.Context, userID string, req ListStoriesRequest) ([]EnrichedStory, error)
	GetStory(ctx context.Context, userID, storyID string) (*EnrichedStory, error)
	// LookupStory returns the catalog view of one story without entitlement data.
	LookupStory(ctx context.Context, storyID string) (*Story, error)
}

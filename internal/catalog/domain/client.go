package domain

import "context"

//go:generate mockgen -source=client.go -destination=mocks/client.go -package=mocks

// Client reads the external story catalog with the service credential.
type Client interface {
	ListStories(ctx context.Context, req ListStoriesRequest) ([]Story, error)
	// GetStory returns ErrStoryNotFound when the catalog has no such story.
	GetStory(ctx context.Context, storyID string) (*Story, error)
}

package domain

import "errors"

var (
	ErrStoryNotFound      = errors.New("story_not_found")
	ErrInvalidStory       = errors.New("invalid_story")
	ErrInvalidPage        = errors.New("invalid_page")
	ErrCatalogUnavailable = errors.New("catalog_unavailable")
)

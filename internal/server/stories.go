package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/fotoyou/internal/catalog/domain"
)

type listStoriesResponse struct {
	Error     bool                          `json:"error"`
	Message   string                        `json:"message"`
	ListStory []catalogdomain.EnrichedStory `json:"listStory"`
}

type getStoryResponse struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Story   json.RawMessage `json:"story"`
	Paid    bool            `json:"paid"`
}

func (s *Server) ListStories(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page, err := parseOptionalPositiveInt(c.Query("page"))
	if err != nil {
		AbortWithError(c, newValidationError("page", "invalid_page", "page must be a positive integer"))
		return
	}
	size, err := parseOptionalPositiveInt(c.Query("size"))
	if err != nil {
		AbortWithError(c, newValidationError("size", "invalid_size", "size must be a positive integer"))
		return
	}
	location, err := parseFlag(c.Query("location"))
	if err != nil {
		AbortWithError(c, newValidationError("location", "invalid_location", "location must be 0 or 1"))
		return
	}

	stories, err := s.catalogSvc.ListStories(c.Request.Context(), identity.UserID, catalogdomain.ListStoriesRequest{
		Page:     page,
		Size:     size,
		Location: location,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, listStoriesResponse{
		Error:     false,
		Message:   "Stories fetched successfully",
		ListStory: stories,
	})
}

func (s *Server) GetStory(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	storyID := strings.TrimSpace(c.Param("id"))
	if storyID == "" {
		AbortWithError(c, newValidationError("id", "invalid_story", "story id is required"))
		return
	}
	c.Set(contextStoryIDKey, storyID)

	story, err := s.catalogSvc.GetStory(c.Request.Context(), identity.UserID, storyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, getStoryResponse{
		Error:   false,
		Message: "Story fetched",
		Story:   story.Raw,
		Paid:    story.Paid,
	})
}

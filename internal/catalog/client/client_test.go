package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/fotoyou/internal/catalog/client"
	"github.com/smallbiznis/fotoyou/internal/catalog/domain"
	"github.com/smallbiznis/fotoyou/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T, handler http.HandlerFunc) domain.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return client.New(client.Params{
		Cfg: config.Config{Catalog: config.CatalogConfig{
			BaseURL:        server.URL + "/v1/",
			APIToken:       "service-token",
			TimeoutSeconds: 2,
		}},
		Log: zaptest.NewLogger(t),
	})
}

func TestListStories(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stories", r.URL.Path)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte(`{"error":false,"message":"Stories fetched successfully","listStory":[
			{"id":"story-1","name":"Pantai","description":"sunset","photoUrl":"https://img/1.jpg","createdAt":"2024-01-01T00:00:00Z","lat":-6.2,"lon":106.8},
			{"name":"missing id"},
			{"id":"story-2","name":"Gunung","price":25000}
		]}`))
	})

	stories, err := c.ListStories(context.Background(), domain.ListStoriesRequest{Page: 2, Size: 10})
	require.NoError(t, err)
	require.Len(t, stories, 3, "entries without an id are kept in place")

	assert.Equal(t, "story-1", stories[0].ID)
	assert.Equal(t, "Pantai", stories[0].Name)
	assert.Nil(t, stories[0].Price)
	assert.JSONEq(t, `{"id":"story-1","name":"Pantai","description":"sunset","photoUrl":"https://img/1.jpg","createdAt":"2024-01-01T00:00:00Z","lat":-6.2,"lon":106.8}`, string(stories[0].Raw))

	assert.Empty(t, stories[1].ID)
	assert.JSONEq(t, `{"name":"missing id"}`, string(stories[1].Raw))

	assert.Equal(t, "story-2", stories[2].ID)
	require.NotNil(t, stories[2].Price)
	assert.Equal(t, int64(25000), *stories[2].Price)
}

func TestListStoriesCatalogError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true,"message":"Missing authentication"}`))
	})

	_, err := c.ListStories(context.Background(), domain.ListStoriesRequest{})
	assert.True(t, errors.Is(err, domain.ErrCatalogUnavailable), "got %v", err)
}

func TestListStoriesUpstreamFailure(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListStories(context.Background(), domain.ListStoriesRequest{Page: 1})
	assert.True(t, errors.Is(err, domain.ErrCatalogUnavailable), "got %v", err)

	_, err = c.ListStories(context.Background(), domain.ListStoriesRequest{Page: -1})
	assert.True(t, errors.Is(err, domain.ErrInvalidPage), "got %v", err)
}

func TestGetStory(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/stories/story-1":
			_, _ = w.Write([]byte(`{"error":false,"message":"Story fetched successfully","story":{"id":"story-1","name":"Pantai","price":"15000"}}`))
		case "/v1/stories/soft-missing":
			_, _ = w.Write([]byte(`{"error":true,"message":"Story not found"}`))
		case "/v1/stories/broken":
			_, _ = w.Write([]byte(`{"error":false,"story":{"name":"no id"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":true,"message":"Story not found"}`))
		}
	})
	ctx := context.Background()

	story, err := c.GetStory(ctx, "story-1")
	require.NoError(t, err)
	assert.Equal(t, "Pantai", story.Name)
	require.NotNil(t, story.Price)
	assert.Equal(t, int64(15000), *story.Price)

	_, err = c.GetStory(ctx, "unknown")
	assert.True(t, errors.Is(err, domain.ErrStoryNotFound), "got %v", err)

	_, err = c.GetStory(ctx, "soft-missing")
	assert.True(t, errors.Is(err, domain.ErrStoryNotFound), "got %v", err)

	_, err = c.GetStory(ctx, "broken")
	assert.True(t, errors.Is(err, domain.ErrCatalogUnavailable), "got %v", err)

	_, err = c.GetStory(ctx, " ")
	assert.True(t, errors.Is(err, domain.ErrInvalidStory), "got %v", err)
}

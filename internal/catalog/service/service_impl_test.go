package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/fotoyou/internal/catalog/domain"
	catalogmocks "github.com/smallbiznis/fotoyou/internal/catalog/domain/mocks"
	"github.com/smallbiznis/fotoyou/internal/catalog/service"
	entitlementmocks "github.com/smallbiznis/fotoyou/internal/entitlement/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func story(id string) domain.Story {
	return domain.Story{ID: id, Name: "Story " + id, Raw: json.RawMessage(`{"id":"` + id + `","name":"Story ` + id + `","photoUrl":"https://img/` + id + `.jpg"}`)}
}

func newService(t *testing.T) (domain.Service, *catalogmocks.MockClient, *entitlementmocks.MockStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := catalogmocks.NewMockClient(ctrl)
	store := entitlementmocks.NewMockStore(ctrl)
	svc := service.NewService(service.Params{
		Log:    zaptest.NewLogger(t),
		Client: client,
		Store:  store,
	})
	return svc, client, store
}

func TestListStoriesMarksPaidSubset(t *testing.T) {
	svc, client, store := newService(t)
	ctx := context.Background()
	req := domain.ListStoriesRequest{Page: 1, Size: 4}

	client.EXPECT().ListStories(gomock.Any(), req).Return([]domain.Story{story("s3"), story("s1"), story("s4"), story("s2")}, nil)
	store.EXPECT().
		ListPaidStoryIDs(gomock.Any(), "user-1", []string{"s3", "s1", "s4", "s2"}).
		Return(map[string]struct{}{"s1": {}, "s4": {}}, nil)

	out, err := svc.ListStories(ctx, "user-1", req)
	require.NoError(t, err)
	require.Len(t, out, 4)

	gotIDs := []string{}
	for _, s := range out {
		gotIDs = append(gotIDs, s.ID)
	}
	assert.Equal(t, []string{"s3", "s1", "s4", "s2"}, gotIDs, "catalog order is preserved")
	assert.False(t, out[0].Paid)
	assert.True(t, out[1].Paid)
	assert.True(t, out[2].Paid)
	assert.False(t, out[3].Paid)

	encoded, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s1","name":"Story s1","photoUrl":"https://img/s1.jpg","paid":true}`, string(encoded))
}

func TestListStoriesKeepsEntriesWithoutID(t *testing.T) {
	svc, client, store := newService(t)
	noID := domain.Story{Raw: json.RawMessage(`{"name":"untitled","photoUrl":"https://img/x.jpg"}`)}

	client.EXPECT().ListStories(gomock.Any(), gomock.Any()).Return([]domain.Story{story("s1"), noID, story("s2")}, nil)
	store.EXPECT().
		ListPaidStoryIDs(gomock.Any(), "user-1", []string{"s1", "s2"}).
		Return(map[string]struct{}{"s1": {}, "s2": {}}, nil)

	out, err := svc.ListStories(context.Background(), "user-1", domain.ListStoriesRequest{Page: 1})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "s1", out[0].ID)
	assert.True(t, out[0].Paid)
	assert.Empty(t, out[1].ID)
	assert.False(t, out[1].Paid)
	assert.Equal(t, "s2", out[2].ID)
	assert.True(t, out[2].Paid)

	encoded, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.Equal(t, `{"name":"untitled","photoUrl":"https://img/x.jpg","paid":false}`, string(encoded))
}

func TestListStoriesEmptyPageSkipsEntitlements(t *testing.T) {
	svc, client, _ := newService(t)

	client.EXPECT().ListStories(gomock.Any(), gomock.Any()).Return([]domain.Story{}, nil)

	out, err := svc.ListStories(context.Background(), "user-1", domain.ListStoriesRequest{Page: 99})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestListStoriesPropagatesFailures(t *testing.T) {
	svc, client, store := newService(t)
	ctx := context.Background()

	client.EXPECT().ListStories(gomock.Any(), gomock.Any()).Return(nil, domain.ErrCatalogUnavailable)
	_, err := svc.ListStories(ctx, "user-1", domain.ListStoriesRequest{})
	assert.True(t, errors.Is(err, domain.ErrCatalogUnavailable))

	dbErr := errors.New("connection refused")
	client.EXPECT().ListStories(gomock.Any(), gomock.Any()).Return([]domain.Story{story("s1")}, nil)
	store.EXPECT().ListPaidStoryIDs(gomock.Any(), "user-1", []string{"s1"}).Return(nil, dbErr)
	_, err = svc.ListStories(ctx, "user-1", domain.ListStoriesRequest{})
	assert.True(t, errors.Is(err, dbErr))
}

func TestGetStory(t *testing.T) {
	svc, client, store := newService(t)
	ctx := context.Background()

	s1 := story("s1")
	client.EXPECT().GetStory(gomock.Any(), "s1").Return(&s1, nil)
	store.EXPECT().HasPaid(gomock.Any(), "user-1", "s1").Return(true, nil)

	out, err := svc.GetStory(ctx, "user-1", " s1 ")
	require.NoError(t, err)
	assert.True(t, out.Paid)
	assert.Equal(t, "s1", out.ID)
}

func TestGetStoryNotFound(t *testing.T) {
	svc, client, _ := newService(t)

	client.EXPECT().GetStory(gomock.Any(), "nope").Return(nil, domain.ErrStoryNotFound)

	_, err := svc.GetStory(context.Background(), "user-1", "nope")
	assert.True(t, errors.Is(err, domain.ErrStoryNotFound))

	_, err = svc.GetStory(context.Background(), "user-1", "")
	assert.True(t, errors.Is(err, domain.ErrInvalidStory))
}

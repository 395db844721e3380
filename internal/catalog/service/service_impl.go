package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/fotoyou/internal/catalog/domain"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Client domain.Client
	Store  entitlementdomain.Store
}

type Service struct {
	log    *zap.Logger
	client domain.Client
	store  entitlementdomain.Store
}

func NewService(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("catalog.service"),
		client: p.Client,
		store:  p.Store,
	}
}

func (s *Service) ListStories(ctx context.Context, userID string, req domain.ListStoriesRequest) ([]domain.EnrichedStory, error) {
	stories, err := s.client.ListStories(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return []domain.EnrichedStory{}, nil
	}

	ids := make([]string, 0, len(stories))
	for _, story := range stories {
		if story.ID != "" {
			ids = append(ids, story.ID)
		}
	}
	paid, err := s.store.ListPaidStoryIDs(ctx, userID, ids)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Error("failed to load entitlements for story page",
			zap.Int("stories", len(ids)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	out := make([]domain.EnrichedStory, 0, len(stories))
	for _, story := range stories {
		_, ok := paid[story.ID]
		out = append(out, domain.EnrichedStory{Story: story, Paid: ok})
	}
	return out, nil
}

func (s *Service) GetStory(ctx context.Context, userID, storyID string) (*domain.EnrichedStory, error) {
	story, err := s.LookupStory(ctx, storyID)
	if err != nil {
		return nil, err
	}

	paid, err := s.store.HasPaid(ctx, userID, story.ID)
	if err != nil {
		obslogger.WithContext(ctx, s.log).Error("failed to load entitlement for story",
			zap.String("story_id", story.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("check entitlement: %w", err)
	}
	return &domain.EnrichedStory{Story: *story, Paid: paid}, nil
}

func (s *Service) LookupStory(ctx context.Context, storyID string) (*domain.Story, error) {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return nil, domain.ErrInvalidStory
	}
	return s.client.GetStory(ctx, storyID)
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/fotoyou/internal/catalog/domain"
	"github.com/smallbiznis/fotoyou/internal/config"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fotoyou/internal/observability/metrics"
	"github.com/smallbiznis/fotoyou/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20

	endpointList = "list_stories"
	endpointGet  = "get_story"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
	HTTPClient *http.Client        `name:"catalog_http_client" optional:"true"`
}

type Client struct {
	baseURL    string
	token      string
	http       *http.Client
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
	tracer     trace.Tracer
}

func New(p Params) domain.Client {
	timeout := time.Duration(p.Cfg.Catalog.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(p.Cfg.Catalog.BaseURL), "/"),
		token:      p.Cfg.Catalog.APIToken,
		http:       httpClient,
		log:        p.Log.Named("catalog.client"),
		obsMetrics: p.ObsMetrics,
		tracer:     otel.Tracer("fotoyou/catalog"),
	}
}

type listResponse struct {
	Error     bool              `json:"error"`
	Message   string            `json:"message"`
	ListStory []json.RawMessage `json:"listStory"`
}

type getResponse struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Story   json.RawMessage `json:"story"`
}

func (c *Client) ListStories(ctx context.Context, req domain.ListStoriesRequest) ([]domain.Story, error) {
	if req.Page < 0 || req.Size < 0 {
		return nil, domain.ErrInvalidPage
	}

	query := url.Values{}
	if req.Page > 0 {
		query.Set("page", strconv.Itoa(req.Page))
	}
	if req.Size > 0 {
		query.Set("size", strconv.Itoa(req.Size))
	}
	if req.Location {
		query.Set("location", "1")
	}

	endpoint := c.baseURL + "/stories"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var body listResponse
	if err := c.get(ctx, endpointList, endpoint, &body); err != nil {
		if errors.Is(err, domain.ErrStoryNotFound) {
			return nil, fmt.Errorf("%w: list endpoint not found", domain.ErrCatalogUnavailable)
		}
		return nil, err
	}
	if body.Error {
		c.obsMetrics.RecordCatalogRequest(ctx, endpointList, "error")
		return nil, fmt.Errorf("%w: %s", domain.ErrCatalogUnavailable, body.Message)
	}

	stories := make([]domain.Story, 0, len(body.ListStory))
	for _, raw := range body.ListStory {
		story, err := domain.NewStory(raw)
		if err != nil {
			// Stays in catalog position; an empty ID is never paid.
			obslogger.WithContext(ctx, c.log).Warn("catalog story without usable id", zap.Error(err))
			stories = append(stories, domain.Story{Raw: append(json.RawMessage(nil), raw...)})
			continue
		}
		stories = append(stories, *story)
	}
	c.obsMetrics.RecordCatalogRequest(ctx, endpointList, "ok")
	return stories, nil
}

func (c *Client) GetStory(ctx context.Context, storyID string) (*domain.Story, error) {
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return nil, domain.ErrInvalidStory
	}

	var body getResponse
	if err := c.get(ctx, endpointGet, c.baseURL+"/stories/"+url.PathEscape(storyID), &body); err != nil {
		return nil, err
	}
	// The catalog reports unknown ids with error=true rather than always 404.
	if body.Error || len(body.Story) == 0 || string(body.Story) == "null" {
		c.obsMetrics.RecordCatalogRequest(ctx, endpointGet, "not_found")
		return nil, domain.ErrStoryNotFound
	}

	story, err := domain.NewStory(body.Story)
	if err != nil {
		c.obsMetrics.RecordCatalogRequest(ctx, endpointGet, "error")
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	c.obsMetrics.RecordCatalogRequest(ctx, endpointGet, "ok")
	return story, nil
}

func (c *Client) get(ctx context.Context, name, endpoint string, out any) error {
	ctx, span := c.tracer.Start(ctx, "catalog."+name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.fail(ctx, span, name, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(ctx, span, name, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err))
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		c.obsMetrics.RecordCatalogRequest(ctx, name, "not_found")
		return domain.ErrStoryNotFound
	}
	if resp.StatusCode >= 300 {
		return c.fail(ctx, span, name, fmt.Errorf("%w: status %d", domain.ErrCatalogUnavailable, resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.fail(ctx, span, name, fmt.Errorf("%w: read body: %v", domain.ErrCatalogUnavailable, err))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(ctx, span, name, fmt.Errorf("%w: decode body: %v", domain.ErrCatalogUnavailable, err))
	}
	return nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, name string, err error) error {
	safe := tracing.SafeError(err)
	span.RecordError(safe)
	span.SetStatus(codes.Error, safe.Error())
	c.obsMetrics.RecordCatalogRequest(ctx, name, "error")
	obslogger.WithContext(ctx, c.log).Warn("catalog request failed",
		zap.String("endpoint", name),
		zap.Error(err),
	)
	return err
}

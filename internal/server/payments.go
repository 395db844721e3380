package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/fotoyou/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
	purchasedomain "github.com/smallbiznis/fotoyou/internal/purchase/domain"
	"github.com/smallbiznis/fotoyou/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// Gateway notifications are small; anything larger is not from the gateway.
const maxNotificationBytes = 64 << 10

type initiatePurchaseRequest struct {
	StoryID   string `json:"storyId"`
	StoryName string `json:"storyName"`
	Amount    int64  `json:"amount"`
}

func (s *Server) InitiatePurchase(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req initiatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	storyID := strings.TrimSpace(req.StoryID)
	c.Set(contextStoryIDKey, storyID)

	resp, err := s.purchaseSvc.InitiatePurchase(c.Request.Context(), purchasedomain.InitiateRequest{
		Buyer: purchasedomain.Buyer{
			UserID: identity.UserID,
			Name:   identity.Name,
			Email:  identity.Email,
		},
		StoryID:   storyID,
		StoryName: strings.TrimSpace(req.StoryName),
		Amount:    req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(contextOrderIDKey, resp.OrderID)

	c.JSON(http.StatusOK, resp)
}

// HandlePaymentNotification accepts callbacks for the configured provider on
// the path registered with the gateway dashboard.
func (s *Server) HandlePaymentNotification(c *gin.Context) {
	s.handleNotification(c, "")
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	if provider == "" {
		AbortWithError(c, paymentdomain.ErrProviderNotFound)
		return
	}
	s.handleNotification(c, provider)
}

func (s *Server) handleNotification(c *gin.Context, provider string) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationBytes+1))
	if err != nil || len(payload) > maxNotificationBytes {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := correlation.ContextWithCorrelationID(c.Request.Context(), strings.TrimSpace(c.GetHeader(correlation.HeaderName)))
	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	c.Request = c.Request.WithContext(ctx)
	c.Header(correlation.HeaderName, correlationID)

	result, err := s.purchaseSvc.HandleNotification(ctx, provider, payload, c.Request.Header)
	if err != nil {
		log := obslogger.WithContext(ctx, s.log).With(zap.String("provider", provider))
		switch {
		case paymentdomain.IsInvalidNotification(err):
			log.Warn("payment notification rejected", zap.Error(err))
		case errors.Is(err, paymentdomain.ErrProviderNotFound):
			log.Warn("payment notification for unknown provider")
		default:
			log.Error("payment notification failed", zap.Error(err))
		}
		AbortWithError(c, err)
		return
	}
	c.Set(contextOrderIDKey, result.OrderID)

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"order_id": result.OrderID,
		"applied":  result.Applied,
	})
}

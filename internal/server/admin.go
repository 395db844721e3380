package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
)

func (s *Server) AdminListPurchases(c *gin.Context) {
	limit, err := parseOptionalPositiveInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a positive integer"))
		return
	}

	status := entitlementdomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	purchases, err := s.store.ListByStatus(c.Request.Context(), entitlementdomain.ListByStatusRequest{
		Status:        status,
		CreatedBefore: s.clock.Now(),
		Limit:         limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if purchases == nil {
		purchases = []entitlementdomain.Purchase{}
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func (s *Server) AdminReconcilePurchase(c *gin.Context) {
	if s.reconciler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	orderID := strings.TrimSpace(c.Param("orderId"))
	c.Set(contextOrderIDKey, orderID)

	result, err := s.reconciler.ReconcileOrder(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

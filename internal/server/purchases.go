package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	"github.com/smallbiznis/fotoyou/internal/providers/pdf"
	purchasedomain "github.com/smallbiznis/fotoyou/internal/purchase/domain"
)

func (s *Server) ListPurchases(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	purchases, err := s.purchaseSvc.ListPurchases(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if purchases == nil {
		purchases = []entitlementdomain.Purchase{}
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func (s *Server) GetPurchase(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID := strings.TrimSpace(c.Param("orderId"))
	c.Set(contextOrderIDKey, orderID)

	purchase, err := s.purchaseSvc.GetPurchase(c.Request.Context(), identity.UserID, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase": purchase})
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if s.receipts == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	ctx := c.Request.Context()
	orderID := strings.TrimSpace(c.Param("orderId"))
	c.Set(contextOrderIDKey, orderID)

	purchase, err := s.purchaseSvc.GetPurchase(ctx, identity.UserID, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if purchase.Status != entitlementdomain.StatusSuccess {
		AbortWithError(c, purchasedomain.ErrPurchaseNotPaid)
		return
	}

	paidAt := purchase.UpdatedAt
	if purchase.ResolvedAt != nil {
		paidAt = *purchase.ResolvedAt
	}
	doc, err := s.receipts.GenerateReceipt(ctx, pdf.ReceiptData{
		OrderID:    purchase.OrderID,
		StoryID:    purchase.StoryID,
		StoryName:  purchase.StoryName,
		BuyerName:  identity.Name,
		BuyerEmail: identity.Email,
		Amount:     purchase.Amount,
		PaidAt:     paidAt,
		Provider:   s.cfg.Payment.Provider,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

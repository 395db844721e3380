package pdf

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/fotoyou/internal/config"
	"go.uber.org/fx"
)

var ErrInvalidReceipt = errors.New("invalid_receipt")

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// ReceiptData is everything printed on a receipt for one paid story.
type ReceiptData struct {
	OrderID    string
	StoryID    string
	StoryName  string
	BuyerName  string
	BuyerEmail string
	Amount     int64
	PaidAt     time.Time
	Provider   string
}

// Document is a rendered file ready to be served.
type Document struct {
	FileName    string
	ContentType string
	Content     []byte
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (*Document, error)
}

type PDFProvider struct {
	issuer string
}

func New(cfg config.Config) Provider {
	issuer := strings.TrimSpace(cfg.AppName)
	if issuer == "" {
		issuer = "fotoyou"
	}
	return &PDFProvider{issuer: issuer}
}

// ReceiptFileName builds an ASCII-safe download name from the story and order.
func ReceiptFileName(data ReceiptData) string {
	parts := []string{"receipt"}
	if name := slug.Make(data.StoryName); name != "" {
		parts = append(parts, name)
	}
	if order := slug.Make(data.OrderID); order != "" {
		parts = append(parts, order)
	}
	return strings.Join(parts, "-") + ".pdf"
}

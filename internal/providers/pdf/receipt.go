package pdf

import (
	"context"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var receiptLocation = time.FixedZone("WIB", 7*60*60)

func (p *PDFProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(data.OrderID) == "" || strings.TrimSpace(data.StoryID) == "" || data.Amount <= 0 || data.PaidAt.IsZero() {
		return nil, ErrInvalidReceipt
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(25,
		text.NewCol(6, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(6, p.issuer, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	paidAt := data.PaidAt.In(receiptLocation).Format("02 Jan 2006 15:04 MST")
	m.AddRow(20,
		col.New(6).Add(
			text.New("Order number: "+data.OrderID, props.Text{Top: 0}),
			text.New("Date paid: "+paidAt, props.Text{Top: 4}),
			text.New("Payment provider: "+providerLabel(data.Provider), props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Billed to", props.Text{Style: fontstyle.Bold}),
			text.New(fallback(data.BuyerName, "-"), props.Text{Top: 5}),
			text.New(fallback(data.BuyerEmail, "-"), props.Text{Top: 9}),
		),
		col.New(6),
	)

	total := formatRupiah(data.Amount)
	m.AddRow(15,
		text.NewCol(12, total+" paid on "+paidAt, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(15,
		text.NewCol(6, "Unlock story: "+fallback(data.StoryName, data.StoryID), props.Text{Size: 9}),
		text.NewCol(2, "1", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, total, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, total, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, total, props.Text{Size: 9, Align: align.Right, Style: fontstyle.Bold}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return &Document{
		FileName:    ReceiptFileName(data),
		ContentType: "application/pdf",
		Content:     doc.GetBytes(),
	}, nil
}

func formatRupiah(amount int64) string {
	return message.NewPrinter(language.Indonesian).Sprintf("Rp %d", amount)
}

func providerLabel(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "midtrans":
		return "Midtrans"
	default:
		return provider
	}
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

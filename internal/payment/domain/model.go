package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Order is the descriptor sent to a gateway when asking for a transaction token.
type Order struct {
	OrderID         string
	Amount          int64
	ItemID          string
	ItemName        string
	BuyerName       string
	BuyerEmail      string
	NotificationURL string
}

// Transaction is what the gateway hands back for a new order.
type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Notification carries the fields of a gateway status report needed to
// resolve a purchase. Raw is the payload as received.
type Notification struct {
	Provider          string
	OrderID           string
	TransactionID     string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	GrossAmount       string
	Raw               []byte
}

// NotificationRecord is one accepted notification for a known order.
type NotificationRecord struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider          string         `json:"provider" gorm:"type:text;not null"`
	OrderID           string         `json:"order_id" gorm:"type:text;not null"`
	TransactionID     string         `json:"transaction_id" gorm:"type:text"`
	TransactionStatus string         `json:"transaction_status" gorm:"type:text;not null"`
	FraudStatus       string         `json:"fraud_status" gorm:"type:text"`
	ResolvedStatus    string         `json:"resolved_status" gorm:"type:text"`
	Applied           bool           `json:"applied" gorm:"not null"`
	Payload           datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ReceivedAt        time.Time      `json:"received_at" gorm:"not null"`
}

func (NotificationRecord) TableName() string { return "payment_notifications" }

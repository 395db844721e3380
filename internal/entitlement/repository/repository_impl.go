package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	"gorm.io/gorm"
)

const purchaseColumns = `id, order_id, user_id, story_id, story_name, amount, status,
	created_at, updated_at, resolved_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, purchase *domain.Purchase) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO purchases (`+purchaseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		purchase.ID,
		purchase.OrderID,
		purchase.UserID,
		purchase.StoryID,
		purchase.StoryName,
		purchase.Amount,
		purchase.Status,
		purchase.CreatedAt,
		purchase.UpdatedAt,
		purchase.ResolvedAt,
	).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Purchase, error) {
	var item domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+`
		 FROM purchases
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, userID, storyID string) (*domain.Purchase, error) {
	var item domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+`
		 FROM purchases
		 WHERE user_id = ? AND story_id = ? AND status IN (?, ?)
		 LIMIT 1`,
		userID,
		storyID,
		domain.StatusPending,
		domain.StatusSuccess,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateStatusIfPending(ctx context.Context, db *gorm.DB, orderID string, status domain.Status, resolvedAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE purchases
		 SET status = ?, resolved_at = ?, updated_at = ?
		 WHERE order_id = ? AND status = ?`,
		status,
		resolvedAt,
		resolvedAt,
		orderID,
		domain.StatusPending,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListPaidStoryIDs(ctx context.Context, db *gorm.DB, userID string, storyIDs []string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT story_id
		 FROM purchases
		 WHERE user_id = ? AND status = ? AND story_id IN ?`,
		userID,
		domain.StatusSuccess,
		storyIDs,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) ExistsPaid(ctx context.Context, db *gorm.DB, userID, storyID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM purchases
		 WHERE user_id = ? AND story_id = ? AND status = ?`,
		userID,
		storyID,
		domain.StatusSuccess,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Purchase, error) {
	var items []domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+`
		 FROM purchases
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status domain.Status, createdBefore time.Time, limit int) ([]domain.Purchase, error) {
	var items []domain.Purchase
	err := db.WithContext(ctx).Raw(
		`SELECT `+purchaseColumns+`
		 FROM purchases
		 WHERE status = ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		status,
		createdBefore,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

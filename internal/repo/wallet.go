package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) EnsureUser(ctx context.Context, userID uuid.UUID) error {
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.User{ID: userID}).Error
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// AdjustBalance applies delta in a single UPDATE so concurrent writers cannot lose updates.
// With floor set the update only matches when the resulting balance stays non-negative.
func (r *GormRepo) AdjustBalance(ctx context.Context, userID uuid.UUID, delta int64, floor bool) (bool, error) {
	q := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID)
	if floor {
		q = q.Where("wallet_balance + ? >= 0", delta)
	}
	res := q.Update("wallet_balance", gorm.Expr("wallet_balance + ?", delta))
	if res.Error != nil {
		return false, fmt.Errorf("adjust balance: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AppendWalletTransaction reports false when the (order, reason) pair was already recorded.
func (r *GormRepo) AppendWalletTransaction(ctx context.Context, entry *models.WalletTransaction) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "reason"}},
			DoNothing: true,
		}).
		Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("append wallet transaction: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return user.WalletBalance, nil
}

// LedgerBalance recomputes the balance from the append-only ledger.
func (r *GormRepo) LedgerBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.DB.WithContext(ctx).Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN -amount ELSE amount END), 0)", models.WalletDebit).
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	return sum, nil
}

func (r *GormRepo) ListWalletTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	return entries, nil
}

func (r *GormRepo) CountWalletCredits(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("order_id = ? AND type = ?", orderID, models.WalletCredit).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count wallet credits: %w", err)
	}
	return n, nil
}

func (r *GormRepo) CountWalletTransactions(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count wallet transactions: %w", err)
	}
	return n, nil
}

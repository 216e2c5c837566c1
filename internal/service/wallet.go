package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/fulfillment/internal/cache"
	"github.com/Skotchmaster/fulfillment/internal/domain"
	"github.com/Skotchmaster/fulfillment/internal/events"
	"github.com/Skotchmaster/fulfillment/internal/metrics"
	"github.com/Skotchmaster/fulfillment/internal/models"
	"github.com/Skotchmaster/fulfillment/internal/repo"
	"github.com/Skotchmaster/fulfillment/internal/transport"
	"github.com/Skotchmaster/fulfillment/internal/util"
	"github.com/Skotchmaster/fulfillment/pkg/logging"
	"github.com/google/uuid"
)

const (
	ReasonCancellation = string(domain.TriggerCancellation)
	ReasonReturn       = string(domain.TriggerReturn)
	ReasonAdjustment   = "ADJUSTMENT"
)

type Entry struct {
	UserID  uuid.UUID
	OrderID *uuid.UUID
	Amount  int64
	Reason  string
}

// Ledger is the append-only wallet. Every entry and its balance change commit together.
type Ledger struct {
	Repo   *repo.GormRepo
	Cache  cache.BalanceCache
	Events events.Publisher
}

// CreditTx appends a credit inside the caller's transaction. Call Committed after commit.
func (l *Ledger) CreditTx(ctx context.Context, tx *repo.GormRepo, e Entry) (*models.WalletTransaction, error) {
	return l.apply(ctx, tx, e, models.WalletCredit)
}

// DebitTx fails with ErrValidation when the balance would go negative.
func (l *Ledger) DebitTx(ctx context.Context, tx *repo.GormRepo, e Entry) (*models.WalletTransaction, error) {
	return l.apply(ctx, tx, e, models.WalletDebit)
}

func (l *Ledger) Credit(ctx context.Context, e Entry) (*models.WalletTransaction, error) {
	return l.standalone(ctx, e, models.WalletCredit)
}

func (l *Ledger) Debit(ctx context.Context, e Entry) (*models.WalletTransaction, error) {
	return l.standalone(ctx, e, models.WalletDebit)
}

func (l *Ledger) standalone(ctx context.Context, e Entry, typ models.WalletEntryType) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := l.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		var err error
		entry, err = l.apply(ctx, tx, e, typ)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Committed(ctx, entry)
	return entry, nil
}

func (l *Ledger) apply(ctx context.Context, tx *repo.GormRepo, e Entry, typ models.WalletEntryType) (*models.WalletTransaction, error) {
	if e.Amount <= 0 {
		return nil, fmt.Errorf("%w: wallet amount must be positive", domain.ErrValidation)
	}
	if e.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: wallet user required", domain.ErrValidation)
	}
	if e.Reason == "" {
		e.Reason = ReasonAdjustment
	}
	if err := tx.EnsureUser(ctx, e.UserID); err != nil {
		return nil, err
	}

	entry := &models.WalletTransaction{
		UserID:  e.UserID,
		OrderID: e.OrderID,
		Amount:  e.Amount,
		Type:    typ,
		Reason:  e.Reason,
	}
	inserted, err := tx.AppendWalletTransaction(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, fmt.Errorf("%w: wallet already %s for order %s (%s)", domain.ErrConflict, typ, e.OrderID, e.Reason)
	}

	applied, err := tx.AdjustBalance(ctx, e.UserID, entry.Signed(), typ == models.WalletDebit)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("%w: insufficient wallet balance", domain.ErrValidation)
	}
	return entry, nil
}

// Committed runs the side effects of an entry whose transaction has committed.
func (l *Ledger) Committed(ctx context.Context, entry *models.WalletTransaction) {
	if entry == nil {
		return
	}
	metrics.Get().WalletEntries.WithLabelValues(string(entry.Type), entry.Reason).Inc()
	if l.Cache != nil {
		if err := l.Cache.Invalidate(ctx, entry.UserID); err != nil {
			logging.FromContext(ctx).Warn("wallet_cache_invalidate_failed", "user_id", entry.UserID, "error", err)
		}
	}
	ev := events.Event{Type: events.WalletCredited, UserID: entry.UserID, Amount: entry.Amount, To: entry.Reason}
	if entry.Type == models.WalletDebit {
		ev.Type = events.WalletDebited
	}
	if entry.OrderID != nil {
		ev.OrderID = *entry.OrderID
	}
	publish(ctx, l.Events, ev)
}

// Balance reads through the cache. The value is cached only if no entry committed
// between reading the generation and loading the balance.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	log := logging.FromContext(ctx)
	gen, cacheable := int64(0), l.Cache != nil
	if cacheable {
		v, err := l.Cache.Get(ctx, userID)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn("wallet_cache_get_failed", "user_id", userID, "error", err)
		}
		if gen, err = l.Cache.Generation(ctx, userID); err != nil {
			log.Warn("wallet_cache_get_failed", "user_id", userID, "error", err)
			cacheable = false
		}
	}
	balance, err := l.Repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if cacheable {
		err := l.Cache.SetAt(ctx, userID, gen, balance)
		if err != nil && !errors.Is(err, cache.ErrSuperseded) {
			log.Warn("wallet_cache_set_failed", "user_id", userID, "error", err)
		}
	}
	return balance, nil
}

func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	return l.Repo.ListWalletTransactions(ctx, userID, limit, offset)
}

// Statement is the wallet view: the current balance and one page of entries, newest first.
func (l *Ledger) Statement(ctx context.Context, userID uuid.UUID, page, size int) (*transport.WalletResponse, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	from, limit := util.Calculate(page, size)
	entries, err := l.Transactions(ctx, userID, limit, from)
	if err != nil {
		return nil, err
	}
	total, err := l.Repo.CountWalletTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	return &transport.WalletResponse{
		UserID:       userID,
		Balance:      balance,
		Transactions: transport.ListResponse[models.WalletTransaction]{Items: entries, Page: page, Size: limit, Total: total},
	}, nil
}

// Audit reports ErrConflict when the stored balance drifted from the ledger sum.
func (l *Ledger) Audit(ctx context.Context, userID uuid.UUID) error {
	stored, err := l.Repo.GetBalance(ctx, userID)
	if err != nil {
		return err
	}
	sum, err := l.Repo.LedgerBalance(ctx, userID)
	if err != nil {
		return err
	}
	if stored != sum {
		return fmt.Errorf("%w: wallet balance %d differs from ledger %d", domain.ErrConflict, stored, sum)
	}
	return nil
}

package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/fulfillment/internal/domain"
	"gorm.io/gorm"
)

// ErrStale is returned when a compare-and-set update matched no row.
var ErrStale = fmt.Errorf("%w: record was modified concurrently", domain.ErrConflict)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// Transaction runs fn against a repo bound to a single database transaction.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return err
}

package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// Ledger bundles the repositories that share one database handle. Inside
// Transaction every repository of the callback's Ledger runs on the same tx.
type Ledger struct {
	db        *gorm.DB
	Producers *ProducerRepository
	KMLs      *KMLRepository
	Files     *FileRepository
	Types     *TypeRepository
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{
		db:        db,
		Producers: NewProducerRepository(db),
		KMLs:      NewKMLRepository(db),
		Files:     NewFileRepository(db),
		Types:     NewTypeRepository(db),
	}
}

// Transaction commits when fn returns nil and rolls back everything fn did
// otherwise, leaving the previously committed state intact.
func (l *Ledger) Transaction(ctx context.Context, fn func(tx *Ledger) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewLedger(tx))
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

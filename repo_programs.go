package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Programs is a read mostly store of bootcamps and masterclasses
type Programs interface {
	repository.Repository[*Program]
	ListByTitle(ctx context.Context) ([]*Program, error)
}

type programs struct {
	repository.Repository[*Program]
	db *bun.DB
}

var _ Programs = (*programs)(nil)

// NewProgramsRepository creates the bun backed program store
func NewProgramsRepository(db *bun.DB) Programs {
	repo := repository.NewRepository[*Program](db, repository.ModelHandlers[*Program]{
		NewRecord: func() *Program { return &Program{} },
		GetID: func(record *Program) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Program, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &programs{
		Repository: repo,
		db:         db,
	}
}

func (p *programs) Create(ctx context.Context, record *Program, criteria ...repository.InsertCriteria) (*Program, error) {
	return p.CreateTx(ctx, p.db, record, criteria...)
}

func (p *programs) CreateTx(ctx context.Context, tx bun.IDB, record *Program, criteria ...repository.InsertCriteria) (*Program, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return p.Repository.CreateTx(ctx, tx, record, criteria...)
}

// ListByTitle returns every program for the registration form
func (p *programs) ListByTitle(ctx context.Context) ([]*Program, error) {
	var records []*Program
	if err := p.db.NewSelect().Model(&records).OrderExpr("?TableAlias.title ASC").Scan(ctx); err != nil && !IsNotFound(err) {
		return nil, err
	}
	return records, nil
}

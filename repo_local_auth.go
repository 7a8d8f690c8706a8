package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LocalAuths is the persistence boundary for password credentials.
type LocalAuths interface {
	repository.Repository[*LocalAuth]

	GetByUserID(ctx context.Context, userID uuid.UUID) (*LocalAuth, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*LocalAuth, error)
}

type localAuths struct {
	repository.Repository[*LocalAuth]
	db *bun.DB
}

var (
	_ LocalAuths                        = (*localAuths)(nil)
	_ repository.Repository[*LocalAuth] = (*localAuths)(nil)
)

// NewLocalAuthsRepository builds the default bun-backed LocalAuths
// repository.
func NewLocalAuthsRepository(db *bun.DB) LocalAuths {
	repo := repository.NewRepository[*LocalAuth](db, repository.ModelHandlers[*LocalAuth]{
		NewRecord: func() *LocalAuth { return &LocalAuth{} },
		GetID: func(la *LocalAuth) uuid.UUID {
			if la == nil {
				return uuid.Nil
			}
			return la.ID
		},
		SetID: func(la *LocalAuth, id uuid.UUID) {
			if la != nil {
				la.ID = id
			}
		},
	})

	return &localAuths{
		Repository: repo,
		db:         db,
	}
}

func (a *localAuths) GetByUserID(ctx context.Context, userID uuid.UUID) (*LocalAuth, error) {
	return a.GetByUserIDTx(ctx, a.db, userID)
}

func (a *localAuths) GetByUserIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*LocalAuth, error) {
	record := &LocalAuth{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"user_id": userID.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

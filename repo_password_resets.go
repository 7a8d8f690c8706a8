package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets is the persistence boundary for reset requests.
type PasswordResets interface {
	repository.Repository[*PasswordReset]

	FindByID(ctx context.Context, id uuid.UUID) (*PasswordReset, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*PasswordReset, error)

	// MarkCompleted consumes the request. The guarded update only hits rows
	// still in the requested state, so a request can be consumed once.
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkCompletedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var (
	_ PasswordResets                        = (*passwordResets)(nil)
	_ repository.Repository[*PasswordReset] = (*passwordResets)(nil)
)

// NewPasswordResetsRepository builds the default bun-backed PasswordResets
// repository.
func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	repo := repository.NewRepository[*PasswordReset](db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(r *PasswordReset) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *PasswordReset, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &passwordResets{
		Repository: repo,
		db:         db,
	}
}

func (a *passwordResets) FindByID(ctx context.Context, id uuid.UUID) (*PasswordReset, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *passwordResets) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *passwordResets) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return a.MarkCompletedTx(ctx, a.db, id)
}

func (a *passwordResets) MarkCompletedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetStatusCompleted).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.status = ?", ResetStatusRequested).
		Exec(ctx)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return annotate(ErrResetConsumed, map[string]any{
			"id": id.String(),
		})
	}
	return nil
}

package identity

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Emails is the persistence boundary for email rows.
type Emails interface {
	repository.Repository[*Email]

	GetByAddress(ctx context.Context, address string) (*Email, error)
	GetByAddressTx(ctx context.Context, tx bun.IDB, address string) (*Email, error)

	// MarkVerified flips the row to verified and clears the token hash in
	// one statement. Re-verifying an already verified email fails with
	// ErrEmailAlreadyVerified rather than silently succeeding.
	MarkVerified(ctx context.Context, email UnverifiedEmail) (VerifiedEmail, error)
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, email UnverifiedEmail) (VerifiedEmail, error)
}

type emails struct {
	repository.Repository[*Email]
	db *bun.DB
}

var (
	_ Emails                        = (*emails)(nil)
	_ repository.Repository[*Email] = (*emails)(nil)
)

// NewEmailsRepository builds the default bun-backed Emails repository.
func NewEmailsRepository(db *bun.DB) Emails {
	repo := repository.NewRepository[*Email](db, repository.ModelHandlers[*Email]{
		NewRecord: func() *Email { return &Email{} },
		GetID: func(e *Email) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *Email, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
		GetIdentifier: func() string {
			return "address"
		},
	})

	return &emails{
		Repository: repo,
		db:         db,
	}
}

func (a *emails) GetByAddress(ctx context.Context, address string) (*Email, error) {
	return a.GetByAddressTx(ctx, a.db, address)
}

func (a *emails) GetByAddressTx(ctx context.Context, tx bun.IDB, address string) (*Email, error) {
	record := &Email{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.address = ?", strings.TrimSpace(address)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"address": address,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *emails) MarkVerified(ctx context.Context, email UnverifiedEmail) (VerifiedEmail, error) {
	return a.MarkVerifiedTx(ctx, a.db, email)
}

func (a *emails) MarkVerifiedTx(ctx context.Context, tx bun.IDB, email UnverifiedEmail) (VerifiedEmail, error) {
	res, err := tx.NewUpdate().
		Model((*Email)(nil)).
		Set("verified = ?", true).
		Set("verification_token_hash = NULL").
		Where("?TableAlias.id = ?", email.EmailID()).
		Where("?TableAlias.verified = ?", false).
		Exec(ctx)
	if err != nil {
		return VerifiedEmail{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return VerifiedEmail{}, err
	}

	// Zero rows means the guarded update missed: either the row is gone or
	// someone verified it first. Distinguish so the caller can report a
	// conflict instead of a lookup failure.
	if rows == 0 {
		current := &Email{}
		lookupErr := tx.NewSelect().
			Model(current).
			Where("?TableAlias.id = ?", email.EmailID()).
			Limit(1).
			Scan(ctx)
		if lookupErr != nil {
			if repository.IsRecordNotFound(lookupErr) {
				return VerifiedEmail{}, repository.NewRecordNotFound().
					WithMetadata(map[string]any{
						"id": email.EmailID().String(),
					})
			}
			return VerifiedEmail{}, lookupErr
		}
		return VerifiedEmail{}, annotate(ErrEmailAlreadyVerified, map[string]any{
			"id": email.EmailID().String(),
		})
	}

	return VerifiedEmail{
		id:      email.EmailID(),
		address: email.Address(),
		userID:  email.OwnerID(),
	}, nil
}

package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories plus the transaction primitive
// multi-entity workflows run inside.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Emails() Emails
	LocalAuths() LocalAuths
	PasswordResets() PasswordResets
	Authz() Authorizer
}

type mngr struct {
	db         *bun.DB
	users      Users
	emails     Emails
	localAuths LocalAuths
	resets     PasswordResets
	authz      Authorizer
}

// NewRepositoryManager wires the default repositories over one bun handle.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		users:      NewUsersRepository(db),
		emails:     NewEmailsRepository(db),
		localAuths: NewLocalAuthsRepository(db),
		resets:     NewPasswordResetsRepository(db),
		authz:      NewAuthorizer(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.emails == nil {
		return errors.New("repository emails should be initialized")
	}

	if m.localAuths == nil {
		return errors.New("repository localAuths should be initialized")
	}

	if m.resets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	if m.authz == nil {
		return errors.New("authorizer should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Emails() Emails {
	return m.emails
}

func (m mngr) LocalAuths() LocalAuths {
	return m.localAuths
}

func (m mngr) PasswordResets() PasswordResets {
	return m.resets
}

func (m mngr) Authz() Authorizer {
	return m.authz
}

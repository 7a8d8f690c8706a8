package identity_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	_, repo := setupDB(t)
	register(t, repo, "a@example.com")

	initHandler := identity.NewInitializePasswordResetHandler(repo)
	login := identity.NewLoginLocalHandler(repo)

	t.Run("unknown address is a quiet non-request", func(t *testing.T) {
		req, err := initHandler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "nobody@example.com",
		})
		require.NoError(t, err)
		assert.False(t, req.Requested)
	})

	t.Run("full reset swaps the credential once", func(t *testing.T) {
		req, err := initHandler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "a@example.com",
		})
		require.NoError(t, err)
		require.True(t, req.Requested)
		require.NotEmpty(t, req.Token.Reveal())

		finalize := identity.NewFinalizePasswordResetHandler(repo)

		t.Run("wrong token leaves the credential alone", func(t *testing.T) {
			err := finalize.Execute(ctx, identity.FinalizePasswordResetMessage{
				ResetID:         req.ResetID,
				Token:           "not-the-token",
				Password:        "a brand new password",
				ConfirmPassword: "a brand new password",
			})
			require.Error(t, err)
			assert.True(t, goerrors.Is(err, identity.ErrInvalidToken))

			_, err = login.Execute(ctx, identity.LoginLocalMessage{
				Email:    "a@example.com",
				Password: "correct horse battery staple",
			})
			require.NoError(t, err, "old password must still work")
		})

		t.Run("mismatched confirmation is rejected", func(t *testing.T) {
			err := finalize.Execute(ctx, identity.FinalizePasswordResetMessage{
				ResetID:         req.ResetID,
				Token:           req.Token,
				Password:        "a brand new password",
				ConfirmPassword: "a different password!",
			})
			require.Error(t, err)
			assert.True(t, goerrors.Is(err, identity.ErrConfirmMismatch))
		})

		t.Run("correct token replaces the credential", func(t *testing.T) {
			err := finalize.Execute(ctx, identity.FinalizePasswordResetMessage{
				ResetID:         req.ResetID,
				Token:           req.Token,
				Password:        "a brand new password",
				ConfirmPassword: "a brand new password",
			})
			require.NoError(t, err)

			_, err = login.Execute(ctx, identity.LoginLocalMessage{
				Email:    "a@example.com",
				Password: "correct horse battery staple",
			})
			require.Error(t, err, "old password must stop working")
			assert.True(t, goerrors.Is(err, identity.ErrInvalidPassword))

			_, err = login.Execute(ctx, identity.LoginLocalMessage{
				Email:    "a@example.com",
				Password: "a brand new password",
			})
			require.NoError(t, err)
		})

		t.Run("request is consumed exactly once", func(t *testing.T) {
			err := finalize.Execute(ctx, identity.FinalizePasswordResetMessage{
				ResetID:         req.ResetID,
				Token:           req.Token,
				Password:        "yet another password",
				ConfirmPassword: "yet another password",
			})
			require.Error(t, err)
			assert.True(t, goerrors.Is(err, identity.ErrResetConsumed))
		})
	})

	t.Run("expired request is rejected", func(t *testing.T) {
		req, err := initHandler.Execute(ctx, identity.InitializePasswordResetMessage{
			Email: "a@example.com",
		})
		require.NoError(t, err)
		require.True(t, req.Requested)

		future := time.Now().Add(48 * time.Hour)
		finalize := identity.NewFinalizePasswordResetHandler(repo,
			identity.WithResetClock(func() time.Time { return future }),
		)

		err = finalize.Execute(ctx, identity.FinalizePasswordResetMessage{
			ResetID:         req.ResetID,
			Token:           req.Token,
			Password:        "a brand new password",
			ConfirmPassword: "a brand new password",
		})
		require.Error(t, err)
		assert.True(t, goerrors.Is(err, identity.ErrResetExpired))
	})
}

func TestRequestVerification(t *testing.T) {
	ctx := context.Background()
	_, repo := setupDB(t)
	reg := register(t, repo, "a@example.com")

	handler := identity.NewRequestVerificationHandler(repo)
	verify := identity.NewVerifyEmailHandler(repo)

	t.Run("rotation invalidates the previous token", func(t *testing.T) {
		fresh, err := handler.Execute(ctx, identity.RequestVerificationMessage{
			Email: "a@example.com",
		})
		require.NoError(t, err)
		require.NotEmpty(t, fresh.Reveal())
		assert.NotEqual(t, reg.Token.Reveal(), fresh.Reveal())

		_, _, err = verify.Execute(ctx, identity.VerifyEmailMessage{
			Email: "a@example.com",
			Token: reg.Token,
		})
		require.Error(t, err, "original token must stop working")
		assert.True(t, goerrors.Is(err, identity.ErrInvalidToken))

		_, _, err = verify.Execute(ctx, identity.VerifyEmailMessage{
			Email: "a@example.com",
			Token: fresh,
		})
		require.NoError(t, err)
	})

	t.Run("verified address cannot request a token", func(t *testing.T) {
		_, err := handler.Execute(ctx, identity.RequestVerificationMessage{
			Email: "a@example.com",
		})
		require.Error(t, err)
		assert.True(t, goerrors.Is(err, identity.ErrEmailAlreadyVerified))
	})

	t.Run("unknown address is not found", func(t *testing.T) {
		_, err := handler.Execute(ctx, identity.RequestVerificationMessage{
			Email: "nobody@example.com",
		})
		require.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})
}

package guard

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/guardwatch/guardwatch/internal/domain"
	"github.com/guardwatch/guardwatch/internal/repo"
)

// Guard gates the cancel transition behind the user's cancel password. Only
// the bcrypt hash is stored. Verify never mutates anything: a failed check
// must leave the confirmation untouched, so the caller runs the guard before
// touching the store.
type Guard struct {
	users repo.UserStore
}

func New(users repo.UserStore) *Guard {
	return &Guard{users: users}
}

// Verify returns ErrNoPasswordConfigured when the user has no password
// enrolled, ErrBadPassword on mismatch, nil on success.
func (g *Guard) Verify(ctx context.Context, userID, password string) error {
	hash, err := g.users.CancelPasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if hash == "" {
		return domain.ErrNoPasswordConfigured
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrBadPassword
		}
		// corrupt stored hash: still a refusal, not a crash
		return domain.ErrBadPassword
	}
	return nil
}

// Hash produces the stored form of a cancel password (enrollment path).
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package sqlstore

import (
	"context"
	"fmt"

	"github.com/existflow/clientpulse/internal/model"
)

type accountRepository struct {
	c conn
}

func (r *accountRepository) CreateOwner(ctx context.Context, o *model.Owner) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO owners (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.Username, o.Email, o.PasswordHash, mustTime(o.CreatedAt),
	)
	return wrapInsert(err, "owner")
}

func (r *accountRepository) GetOwner(ctx context.Context, id string) (*model.Owner, error) {
	return r.getOwner(ctx, `WHERE id = ?`, id)
}

func (r *accountRepository) GetOwnerByUsername(ctx context.Context, username string) (*model.Owner, error) {
	return r.getOwner(ctx, `WHERE username = ?`, username)
}

func (r *accountRepository) getOwner(ctx context.Context, where, arg string) (*model.Owner, error) {
	var (
		o       model.Owner
		created string
	)
	err := r.c.queryRow(ctx, `
		SELECT id, username, email, password_hash, created_at FROM owners `+where,
		arg,
	).Scan(&o.ID, &o.Username, &o.Email, &o.PasswordHash, &created)
	if err != nil {
		return nil, notFoundOr(err, "owner", arg)
	}
	if o.CreatedAt, err = parseRequiredTime(created); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *accountRepository) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO sessions (token, owner_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		s.Token, s.OwnerID, mustTime(s.ExpiresAt), mustTime(s.CreatedAt),
	)
	return wrapInsert(err, "session")
}

func (r *accountRepository) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var (
		s                model.Session
		expires, created string
	)
	err := r.c.queryRow(ctx, `
		SELECT token, owner_id, expires_at, created_at FROM sessions
		WHERE token = ?`,
		token,
	).Scan(&s.Token, &s.OwnerID, &expires, &created)
	if err != nil {
		return nil, notFoundOr(err, "session", "")
	}
	if s.ExpiresAt, err = parseRequiredTime(expires); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseRequiredTime(created); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *accountRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.c.exec(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func (m *MySQLAdapter) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	now := m.now()
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		u.Username, u.PasswordHash, now, now,
	)
	if isDuplicateEntry(err) {
		return nil, domain.Conflict("username %q already exists", u.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return &u, nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := m.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (m *MySQLAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser locks the row, applies the supplied fields and writes them back.
func (m *MySQLAdapter) UpdateUser(ctx context.Context, username string, newUsername, newPasswordHash *string) (*domain.User, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var u domain.User
	err = tx.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM users WHERE username = ? FOR UPDATE`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}

	if newUsername != nil {
		u.Username = *newUsername
	}
	if newPasswordHash != nil {
		u.PasswordHash = *newPasswordHash
	}
	u.UpdatedAt = m.now()

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET username = ?, password_hash = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.PasswordHash, u.UpdatedAt, u.ID,
	)
	if isDuplicateEntry(err) {
		return nil, domain.Conflict("username %q already exists", u.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &u, nil
}

func (m *MySQLAdapter) DeleteUser(ctx context.Context, username string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

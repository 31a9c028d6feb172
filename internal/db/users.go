package db

import (
	"context"
	"fmt"

	"report-service/internal/models"
)

// GetUsers loads the given users. Unknown ids are absent from the result.
func (d *DB) GetUsers(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	users := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	query := `
	SELECT id, full_name, email, chat_id
	FROM users
	WHERE id = ANY($1)`

	rows, err := d.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.ChatID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateUserChatID links a Telegram chat to a user.
func (d *DB) UpdateUserChatID(ctx context.Context, userID, chatID int64) error {
	result, err := d.Pool.Exec(ctx, `UPDATE users SET chat_id = $1 WHERE id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to update chat id for user %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

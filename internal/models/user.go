package models

// User is a report recipient. ChatID is nil until the user links Telegram.
type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	ChatID   *int64 `json:"chat_id,omitempty"`
}

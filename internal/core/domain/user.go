package domain

import "time"

// MaxPasswordBytes is the longest password bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

type User struct {
	ID           int64     `json:"-"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserUpdate carries the optional fields of a partial account update.
type UserUpdate struct {
	NewUsername *string
	Password    *string
}

func (u UserUpdate) Empty() bool {
	return u.NewUsername == nil && u.Password == nil
}

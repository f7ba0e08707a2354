package model

import "time"

// User is an account.  Name doubles as the label on claimed squares, so
// it is what other players of a game see.
type User struct {
	ID           uint64
	Email        string // lower-cased, unique
	Name         string
	PasswordHash string // bcrypt
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName falls back to the mailbox part of the address for accounts
// without a name.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account is either a local user or a remote actor discovered through federation.
// Remote accounts carry the host of their pod and have no password.
type Account struct {
	ID           int64
	UUID         string
	Name         string
	URL          string
	Host         string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

func (a *Account) IsLocal() bool {
	return a.Host == ""
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type VideoChannel struct {
	ID        int64
	AccountID int64
	Name      string
	CreatedAt time.Time
}

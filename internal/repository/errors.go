// Package repository holds the MySQL data access layer.  Lookups of games
// and players report grid.ErrNotFound so the engine can treat every store
// alike; account lookups use the sentinels below.
package repository

import "errors"

// ErrEmailExists is returned by UserRepo.Create when the address is taken.
// Handlers translate it into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenInvalid is returned for unknown, revoked or expired refresh
// tokens.  Handlers translate it into an HTTP 401 response.
var ErrTokenInvalid = errors.New("refresh token invalid")

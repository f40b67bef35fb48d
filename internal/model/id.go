package model

import "github.com/google/uuid"

// NewID mints a time-ordered UUIDv7. Lists sort by (created_at DESC, id DESC),
// so ids minted later in the same millisecond must compare greater.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

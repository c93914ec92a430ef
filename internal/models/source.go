package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies this relay installation. Its ID tags every row the relay writes to the
// cloud store. Rows are still deduplicated by timestamp alone, so when two relays write the
// same timestamp only the first row is kept.
type Source struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

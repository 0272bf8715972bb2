package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for handlers, subscriptions and
// call correlation.
func NewID() string { return uuid.NewString() }

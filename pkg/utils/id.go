// Package utils holds small helpers shared across layers.
package utils

import "github.com/google/uuid"

// GenerateID returns a fresh UUIDv4 string. Entity IDs are opaque strings
// everywhere else in the codebase; nothing parses them back.
func GenerateID() string {
	return uuid.NewString()
}

// Package store provides keyed document storage for flat records such as
// assets, change requests and agreements.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Storage errors.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store keeps records of one kind, listed in insertion order.
type Store[T any] interface {
	Create(ctx context.Context, id string, v T) error
	Get(ctx context.Context, id string) (T, error)
	List(ctx context.Context) ([]T, error)
	Update(ctx context.Context, id string, v T) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// NewID returns a fresh identifier with the given prefix, e.g. "ASSET3F9C21AB".
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(raw[:8])
}

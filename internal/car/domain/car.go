// Package domain holds the read-only view of the car catalog that auctions
// consume for display. Cars are owned and edited elsewhere.
package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrCarNotFound = errors.New("car not found")

type Car struct {
	ID    uuid.UUID
	Make  string
	Model string
	Year  int
	Title string
}

// Catalog looks cars up by id. Implementations return ErrCarNotFound for
// unknown ids.
type Catalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Car, error)
}

package memory

import (
	"context"
	"sync"

	"github.com/cristianortiz/carauction/internal/car/domain"
	"github.com/google/uuid"
)

// Catalog is an in-memory domain.Catalog, used in development mode and tests.
type Catalog struct {
	mu   sync.RWMutex
	cars map[uuid.UUID]domain.Car
}

func NewCatalog(cars ...domain.Car) *Catalog {
	c := &Catalog{cars: make(map[uuid.UUID]domain.Car, len(cars))}
	for _, car := range cars {
		c.cars[car.ID] = car
	}
	return c
}

func (c *Catalog) GetByID(_ context.Context, id uuid.UUID) (*domain.Car, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	car, ok := c.cars[id]
	if !ok {
		return nil, domain.ErrCarNotFound
	}
	return &car, nil
}

// Put adds or replaces a car.
func (c *Catalog) Put(car domain.Car) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cars[car.ID] = car
}

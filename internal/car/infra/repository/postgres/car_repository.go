package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/carauction/internal/car/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CarRepository implements domain.Catalog over the cars table. It only reads.
type CarRepository struct {
	db *pgxpool.Pool
}

// NewCarRepository crea una nueva instancia de CarRepository.
func NewCarRepository(db *pgxpool.Pool) *CarRepository {
	return &CarRepository{db: db}
}

// GetByID obtiene un auto por su ID desde la base de datos.
func (r *CarRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Car, error) {
	query := `SELECT id, make, model, year, title FROM cars WHERE id = $1`

	car := &domain.Car{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&car.ID,
		&car.Make,
		&car.Model,
		&car.Year,
		&car.Title,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCarNotFound
		}
		return nil, err
	}
	return car, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Money columns are NUMERIC; they are read back as text and parsed into
// decimal.Decimal so no precision is lost on the way.
const auctionColumns = `
	id, car_id, starting_price::text, current_price::text, min_increment::text,
	reserve_price::text, status, end_time, bid_count, winner_phone, version,
	created_at, updated_at`

// AuctionRepository implements domain.AuctionRepository interface
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

// Create inserts a new auction and any bids it already carries in one transaction.
func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
        INSERT INTO auctions (id, car_id, starting_price, current_price, min_increment, reserve_price,
                              status, end_time, bid_count, winner_phone, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err = tx.Exec(ctx, query,
		a.ID,
		a.CarID,
		a.StartingPrice.String(),
		a.CurrentPrice.String(),
		a.MinIncrement.String(),
		nullDecimalText(a.ReservePrice),
		string(a.Status),
		a.EndTime,
		a.BidCount,
		nullText(a.WinnerPhone),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auction %s: %w", a.ID, err)
	}

	if err = insertBids(ctx, tx, a.Bids); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID loads the auction and its bid history from one repeatable-read
// snapshot so the two never disagree.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a, err := scanAuction(tx.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	if a.Bids, err = loadBids(ctx, tx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// Update stores a when its row still has expectedVersion. Bids that are in
// a.Bids but not yet in the table (the newest ones, at the front) are inserted
// in the same transaction. The row is locked FOR UPDATE so two writers on
// different instances cannot both pass the version check.
func (r *AuctionRepository) Update(ctx context.Context, a *domain.Auction, expectedVersion int64) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var storedVersion int64
	var storedBidCount int
	err = tx.QueryRow(ctx,
		`SELECT version, bid_count FROM auctions WHERE id = $1 FOR UPDATE`, a.ID,
	).Scan(&storedVersion, &storedBidCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAuctionNotFound
		}
		return fmt.Errorf("lock auction %s: %w", a.ID, err)
	}
	if storedVersion != expectedVersion {
		log.Debug("Stale auction version",
			zap.String("auctionID", a.ID.String()),
			zap.Int64("stored", storedVersion),
			zap.Int64("expected", expectedVersion),
		)
		return domain.ErrConcurrentModification
	}

	newBids := a.BidCount - storedBidCount
	if newBids < 0 || newBids > len(a.Bids) {
		return fmt.Errorf("auction %s: bid history shrank from %d to %d", a.ID, storedBidCount, a.BidCount)
	}
	if err = insertBids(ctx, tx, a.Bids[:newBids]); err != nil {
		return err
	}

	query := `
        UPDATE auctions
        SET current_price = $2,
            status = $3,
            bid_count = $4,
            winner_phone = $5,
            version = $6,
            updated_at = $7
        WHERE id = $1 AND version = $8
    `
	tag, err := tx.Exec(ctx, query,
		a.ID,
		a.CurrentPrice.String(),
		string(a.Status),
		a.BidCount,
		nullText(a.WinnerPhone),
		a.Version,
		a.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update auction %s: %w", a.ID, err)
	}
	if tag.RowsAffected() != 1 {
		err = domain.ErrConcurrentModification
		return err
	}
	return tx.Commit(ctx)
}

// ListActive returns ACTIVE auctions, soonest end time first.
func (r *AuctionRepository) ListActive(ctx context.Context) ([]*domain.Auction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE status = $1 ORDER BY end_time ASC`,
		string(domain.StatusActive),
	)
	if err != nil {
		return nil, err
	}
	auctions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Auction, error) {
		return scanAuction(row)
	})
	if err != nil {
		return nil, err
	}

	for _, a := range auctions {
		if a.Bids, err = loadBids(ctx, tx, a.ID); err != nil {
			return nil, err
		}
	}
	return auctions, nil
}

// ListExpired returns ids of ACTIVE auctions whose end time is at or before now.
func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM auctions WHERE status = $1 AND end_time <= $2 ORDER BY end_time ASC`,
		string(domain.StatusActive), now,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func insertBids(ctx context.Context, tx pgx.Tx, bids []*domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_name, masked_phone, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	for _, b := range bids {
		if _, err := tx.Exec(ctx, query,
			b.ID,
			b.AuctionID,
			b.BidderName,
			b.MaskedPhone,
			b.Amount.String(),
			b.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert bid %s: %w", b.ID, err)
		}
	}
	return nil
}

func loadBids(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]*domain.Bid, error) {
	rows, err := tx.Query(ctx, `
        SELECT id, auction_id, bidder_name, masked_phone, amount::text, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY amount DESC
    `, auctionID)
	if err != nil {
		return nil, err
	}
	bids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Bid, error) {
		b := &domain.Bid{}
		var amount string
		if err := row.Scan(&b.ID, &b.AuctionID, &b.BidderName, &b.MaskedPhone, &amount, &b.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bid %s amount: %w", b.ID, err)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	if bids == nil {
		bids = []*domain.Bid{}
	}
	return bids, nil
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	var (
		starting, current, increment string
		reservePrice, winnerPhone     *string
		status                        string
	)
	err := row.Scan(
		&a.ID,
		&a.CarID,
		&starting,
		&current,
		&increment,
		&reservePrice,
		&status,
		&a.EndTime,
		&a.BidCount,
		&winnerPhone,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if a.StartingPrice, err = decimal.NewFromString(starting); err != nil {
		return nil, fmt.Errorf("auction %s starting_price: %w", a.ID, err)
	}
	if a.CurrentPrice, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("auction %s current_price: %w", a.ID, err)
	}
	if a.MinIncrement, err = decimal.NewFromString(increment); err != nil {
		return nil, fmt.Errorf("auction %s min_increment: %w", a.ID, err)
	}
	if reservePrice != nil {
		d, err := decimal.NewFromString(*reservePrice)
		if err != nil {
			return nil, fmt.Errorf("auction %s reserve_price: %w", a.ID, err)
		}
		a.ReservePrice = decimal.NewNullDecimal(d)
	}
	if winnerPhone != nil {
		a.WinnerPhone = *winnerPhone
	}
	a.Status = domain.Status(status)
	if !a.Status.Valid() {
		return nil, fmt.Errorf("auction %s: unknown status %q", a.ID, status)
	}
	return a, nil
}

func nullDecimalText(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/DorusKeijzer/Woonitor/internal/domain"
	"github.com/DorusKeijzer/Woonitor/internal/logger"
)

// Schema creates the listings table. Rows are write-once, enforced by the
// primary key on funda_id together with ON CONFLICT DO NOTHING at insert
// time.
const Schema = `
CREATE TABLE IF NOT EXISTS listings (
	funda_id          TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	last_asking_price INTEGER NOT NULL,
	surface_area      INTEGER NOT NULL,
	bedrooms          INTEGER,
	total_rooms       INTEGER NOT NULL,
	listing_type      TEXT NOT NULL,
	sell_date         DATE NOT NULL,
	offer_since       DATE NOT NULL,
	sell_duration     INTERVAL,
	city              TEXT NOT NULL,
	postcode          TEXT NOT NULL,
	neighborhood      TEXT NOT NULL,
	energy_label      TEXT NOT NULL,
	building_year     DATE,
	scraped_at        TIMESTAMP NOT NULL,
	url               TEXT NOT NULL,
	misc_data         JSONB NOT NULL DEFAULT '{}'
)`

// insertListing stores one listing, silently skipping duplicates.
// make_interval is strict, so a null day count yields a null interval.
const insertListing = `
INSERT INTO listings (
	funda_id, title, last_asking_price, surface_area, bedrooms, total_rooms,
	listing_type, sell_date, offer_since, sell_duration, city, postcode,
	neighborhood, energy_label, building_year, scraped_at, url, misc_data
) VALUES (
	:funda_id, :title, :last_asking_price, :surface_area, :bedrooms, :total_rooms,
	:listing_type, :sell_date, :offer_since, make_interval(days => :sell_duration),
	:city, :postcode, :neighborhood, :energy_label, :building_year, :scraped_at,
	:url, :misc_data
)
ON CONFLICT (funda_id) DO NOTHING`

// ListingRepository persists canonical listings.
type ListingRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

// NewListingRepository creates a repository backed by db.
func NewListingRepository(db *sqlx.DB, log logger.Logger) *ListingRepository {
	return &ListingRepository{db: db, logger: log}
}

// EnsureSchema creates the listings table if it does not exist yet.
func (r *ListingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create listings table: %w", err)
	}
	return nil
}

// InsertBatch writes all listings in a single transaction and returns the
// number of rows actually inserted. Duplicates count as skipped, not as
// failures. Any error rolls back the whole batch so a partial flush never
// reaches the table.
func (r *ListingRepository) InsertBatch(ctx context.Context, listings []*domain.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertListing)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, listing := range listings {
		res, err := stmt.ExecContext(ctx, listing)
		if err != nil {
			return 0, fmt.Errorf("insert listing %s: %w", listing.FundaID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	skipped := len(listings) - inserted
	r.logger.Info("batch written",
		logger.Int("inserted", inserted),
		logger.Int("skipped", skipped))
	return inserted, nil
}

// Count returns the number of stored listings.
func (r *ListingRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM listings"); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"listing-publisher/models"
)

// PostgresWriter persists publish receipts to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS publish_receipts (
			id           SERIAL PRIMARY KEY,
			run_id       UUID         NOT NULL,
			listing_id   VARCHAR(32)  NOT NULL,
			platform     VARCHAR(20)  NOT NULL,
			success      BOOLEAN      NOT NULL,
			post_id      TEXT         NOT NULL DEFAULT '',
			error        TEXT         NOT NULL DEFAULT '',
			image_count  INTEGER      NOT NULL DEFAULT 0,
			published_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, platform)
		);

		CREATE INDEX IF NOT EXISTS idx_receipts_listing  ON publish_receipts(listing_id);
		CREATE INDEX IF NOT EXISTS idx_receipts_platform ON publish_receipts(platform);
	`)
	return err
}

// WriteReceipts inserts every receipt in one statement. A run publishing
// twice to the same platform keeps the first receipt.
func (pw *PostgresWriter) WriteReceipts(receipts []*models.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	query, args := receiptInsert(receipts)
	if _, err := pw.db.Exec(query, args...); err != nil {
		return fmt.Errorf("postgres: insert receipts: %w", err)
	}
	return nil
}

func receiptInsert(batch []*models.Receipt) (string, []interface{}) {
	const cols = 8
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, r := range batch {
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		valueArgs = append(valueArgs,
			r.RunID, r.ListingID, string(r.Platform), r.Success, r.PostID, r.Error, r.ImageCount, r.PublishedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO publish_receipts (run_id, listing_id, platform, success, post_id, error, image_count, published_at)
		VALUES %s
		ON CONFLICT (run_id, platform) DO NOTHING
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// Close closes the connection pool.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchByListing returns every receipt recorded for a listing, oldest first.
func (pw *PostgresWriter) FetchByListing(listingID string) ([]*models.Receipt, error) {
	rows, err := pw.db.Query(`
		SELECT id, run_id, listing_id, platform, success, post_id, error, image_count, published_at
		FROM publish_receipts
		WHERE listing_id = $1
		ORDER BY id
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		r := &models.Receipt{}
		var platform string
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.ListingID, &platform, &r.Success,
			&r.PostID, &r.Error, &r.ImageCount, &r.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.Platform = models.Platform(platform)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

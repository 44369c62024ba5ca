package storage

import (
	"context"

	"listing-publisher/models"
)

// ReceiptWriter is the interface any receipts ledger backend must satisfy.
type ReceiptWriter interface {
	WriteReceipts(receipts []*models.Receipt) error
	Close() error
}

// ImageHost makes rendered images reachable by public URL for as long as a
// run needs them.
type ImageHost interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// MultiWriter fans receipts out to several ledgers, returning the first error
// after trying all of them.
type MultiWriter []ReceiptWriter

// WriteReceipts writes to every ledger.
func (m MultiWriter) WriteReceipts(receipts []*models.Receipt) error {
	var first error
	for _, w := range m {
		if err := w.WriteReceipts(receipts); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every ledger.
func (m MultiWriter) Close() error {
	var first error
	for _, w := range m {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ReceiptReader looks up past receipts for audit. Only the PostgreSQL
// ledger supports it.
type ReceiptReader interface {
	FetchByListing(listingID string) ([]*models.Receipt, error)
}

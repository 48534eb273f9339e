package embed

import (
	"context"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

const (
	// DefaultBatchSize is the default number of records processed per batch
	DefaultBatchSize = 100
)

// DocumentIterator iterates over documents that still need a vector.
type DocumentIterator struct {
	repo      storage.DocumentRepository
	batchSize int
}

// NewDocumentIterator creates a new document iterator.
// batchSize: number of records per batch (must be > 0)
func NewDocumentIterator(repo storage.DocumentRepository, batchSize int) *DocumentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &DocumentIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Pending returns all documents that have no stored vector, ordered by path.
func (it *DocumentIterator) Pending(ctx context.Context) ([]*core.DocumentRecord, error) {
	records, err := it.repo.GetAllDocuments(ctx)
	if err != nil {
		return nil, err
	}

	var pending []*core.DocumentRecord
	for _, record := range records {
		if !record.Embedded() {
			pending = append(pending, record)
		}
	}
	return pending, nil
}

// ForEach iterates over all pending documents, calling fn for each batch.
// Iteration stops on first error from fn or when all records are processed.
// Context cancellation is checked between batches.
func (it *DocumentIterator) ForEach(ctx context.Context, fn func([]*core.DocumentRecord) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := it.Pending(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < len(records); i += it.batchSize {
		end := i + it.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := fn(records[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

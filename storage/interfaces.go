package storage

import (
	"context"

	"github.com/poiesic/corpus/core"
)

// DocumentRepository provides operations for managing document records.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// UpsertDocuments adds or replaces document records. IDs are derived from
	// paths (core.IDFromPath); InsertedAt is preserved for existing records
	// and UpdatedAt is refreshed. Returns the stored records.
	UpsertDocuments(ctx context.Context, records ...*core.DocumentRecord) ([]*core.DocumentRecord, error)

	// DeleteDocuments removes document records by their IDs.
	// Returns ErrNotFound if any record doesn't exist.
	DeleteDocuments(ctx context.Context, ids ...core.ID) error

	// GetDocument retrieves a single document record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.DocumentRecord, error)

	// GetDocumentByPath retrieves a document record by its path.
	// Returns ErrNotFound if no record exists for the path.
	GetDocumentByPath(ctx context.Context, path string) (*core.DocumentRecord, error)

	// GetAllDocuments retrieves every stored document record, ordered by path.
	GetAllDocuments(ctx context.Context) ([]*core.DocumentRecord, error)

	// CountDocuments returns the number of stored document records.
	CountDocuments(ctx context.Context) (int, error)

	// FindSimilar finds documents whose vectors are similar to the given one.
	// Returns records with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first). Records without vectors
	// are skipped.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *DocumentRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertDocuments adds or replaces document records.
func (r *DocumentRepository) UpsertDocuments(ctx context.Context, records ...*core.DocumentRecord) ([]*core.DocumentRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			if err := core.ValidateDocumentRecord(record); err != nil {
				return err
			}

			record.Id = core.IDFromPath(record.Path)
			key := makeDocumentKey(record.Id)

			// Preserve InsertedAt for records that already exist
			old, err := r.readDocument(tx, key)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if old != nil {
				record.InsertedAt = old.InsertedAt
			} else {
				record.InsertedAt = now
			}
			record.UpdatedAt = now

			value := storage.MarshalDocumentRecord(record)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			pathKey := makePathKey(record.Path)
			if err := tx.Set(pathKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return records, err
}

// DeleteDocuments removes document records by their IDs.
func (r *DocumentRepository) DeleteDocuments(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeDocumentKey(id)
			record, err := r.readDocument(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(key); err != nil {
				return err
			}
			if err := tx.Delete(makePathKey(record.Path)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a single document record by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.DocumentRecord, error) {
	var record *core.DocumentRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = r.readDocument(tx, makeDocumentKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}

	return record, nil
}

// GetDocumentByPath retrieves a document record by its path.
func (r *DocumentRepository) GetDocumentByPath(ctx context.Context, path string) (*core.DocumentRecord, error) {
	return r.GetDocument(ctx, core.IDFromPath(path))
}

// GetAllDocuments retrieves every stored document record, ordered by path.
func (r *DocumentRepository) GetAllDocuments(ctx context.Context) ([]*core.DocumentRecord, error) {
	var records []*core.DocumentRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPathPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// The path index is sorted by path, so records come out ordered.
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			record, err := r.readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				records = append(records, record)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// CountDocuments returns the number of stored document records.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPathPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// readDocument reads and deserializes a document record within a transaction.
// Returns (nil, nil) if the key doesn't exist.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.DocumentRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.DocumentRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalDocumentRecord(val)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

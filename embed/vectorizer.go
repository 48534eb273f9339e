// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/parallel"
	"github.com/poiesic/corpus/progress"
	"github.com/poiesic/corpus/storage"
)

// Config holds configuration for the embedding operation.
type Config struct {
	// Concurrency is the number of documents embedded at once
	Concurrency int

	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:    4,
		BatchSize:      100,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Failure records a single document that could not be embedded.
type Failure struct {
	Path string
	Err  error
}

// Stats summarizes an embedding run.
type Stats struct {
	Pending  int
	Embedded int
	Failed   int
	Failures []Failure
}

// Vectorizer orchestrates embedding of all unembedded documents in a store.
type Vectorizer struct {
	repo     storage.DocumentRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	iterator *DocumentIterator
	logger   *slog.Logger
}

// NewVectorizer creates a new vectorizer.
// progressWriter: where to write progress output (typically os.Stderr)
func NewVectorizer(repo storage.DocumentRepository, embedder ai.Embedder, config *Config, progressWriter io.Writer) (*Vectorizer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progressWriter == nil {
		progressWriter = io.Discard
	}

	return &Vectorizer{
		repo:     repo,
		embedder: embedder,
		config:   config,
		progress: progressWriter,
		iterator: NewDocumentIterator(repo, config.BatchSize),
		logger:   slog.Default(),
	}, nil
}

// Run embeds every document that has no stored vector. Documents whose
// files cannot be read or embedded are reported in the returned stats;
// the run only errors on cancellation or storage failure.
func (v *Vectorizer) Run(ctx context.Context) (*Stats, error) {
	pending, err := v.iterator.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}

	stats := &Stats{Pending: len(pending)}
	if len(pending) == 0 {
		fmt.Fprintf(v.progress, "No documents need embedding\n")
		return stats, nil
	}

	fmt.Fprintf(v.progress, "Embedding %d documents (batch size: %d, concurrency: %d)\n",
		len(pending), v.config.BatchSize, v.config.Concurrency)

	exec, err := parallel.New[*core.DocumentRecord, []float32](
		v.config.Concurrency,
		parallel.WithLogger(v.logger),
	)
	if err != nil {
		return nil, err
	}

	tracker := progress.NewTracker(v.progress, len(pending), v.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = v.iterator.ForEach(ctx, func(batch []*core.DocumentRecord) error {
		stream := exec.RunSlice(ctx, v.embedDocument, batch)

		var ready []*core.DocumentRecord
		for out := range stream.All() {
			if out.Err != nil {
				stats.Failed++
				stats.Failures = append(stats.Failures, Failure{Path: out.Input.Path, Err: out.Err})
				v.logger.Warn("failed to embed document", "path", out.Input.Path, "error", out.Err)
				continue
			}

			out.Input.Vector = out.Value
			ready = append(ready, out.Input)
		}
		if err := stream.Err(); err != nil {
			return err
		}

		if len(ready) > 0 {
			if _, err := v.repo.UpsertDocuments(ctx, ready...); err != nil {
				return fmt.Errorf("failed to store vectors: %w", err)
			}
			stats.Embedded += len(ready)
		}

		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return stats, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(v.progress, "Embedding complete. Processed %d documents in %v (%.1f docs/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return stats, nil
}

// embedDocument reads one document's file and embeds its contents.
func (v *Vectorizer) embedDocument(ctx context.Context, record *core.DocumentRecord) ([]float32, error) {
	content, err := os.ReadFile(record.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", record.Path, err)
	}

	var vector []float32
	err = RetryWithBackoff(ctx, func() error {
		var embedErr error
		vector, embedErr = v.embedder.EmbedText(ctx, string(content))
		return embedErr
	}, v.config.MaxRetries, v.config.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("embedding %s: %w", record.Path, err)
	}

	return NormalizeVector(vector), nil
}

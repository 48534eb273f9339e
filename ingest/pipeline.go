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

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/corpus/core"
	"github.com/poiesic/corpus/parallel"
	"github.com/poiesic/corpus/storage"
)

const defaultConcurrency = 4

// Pipeline digests files and records them in a document repository.
type Pipeline struct {
	repo        storage.DocumentRepository
	concurrency int
	taskTimeout time.Duration
	failFast    bool
	progress    parallel.ProgressFunc
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency sets how many files are digested at once.
// Default is 4. Values below 1 are rejected when the pipeline runs.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.concurrency = n
		return nil
	}
}

// WithTaskTimeout bounds the time spent digesting a single file.
// Zero disables the bound.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		p.taskTimeout = timeout
		return nil
	}
}

// WithFailFast stops the run after the first per-file failure instead of
// carrying on and reporting failures in the stats.
func WithFailFast(failFast bool) Option {
	return func(p *Pipeline) error {
		p.failFast = failFast
		return nil
	}
}

// WithProgress sets a callback invoked once per processed file.
func WithProgress(fn parallel.ProgressFunc) Option {
	return func(p *Pipeline) error {
		p.progress = fn
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline backed by the given repository.
func NewPipeline(repo storage.DocumentRepository, opts ...Option) (*Pipeline, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	p := &Pipeline{
		repo:        repo,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Failure records a single file that could not be processed.
type Failure struct {
	Path string
	Err  error
}

// Stats summarizes an ingestion run.
type Stats struct {
	Scanned   int
	Added     int
	Updated   int
	Unchanged int
	Failed    int
	Failures  []Failure
}

// Ingest walks root, digests every regular file with bounded concurrency,
// and upserts new or changed documents into the repository. Unchanged files
// (same digest as stored) are skipped. Per-file failures are collected in
// the returned stats; the run itself only errors on executor-level failure
// such as cancellation or fail-fast abort.
func (p *Pipeline) Ingest(ctx context.Context, root string) (*Stats, error) {
	exec, err := parallel.New[string, *core.DocumentRecord](p.concurrency, p.executorOptions()...)
	if err != nil {
		return nil, err
	}

	p.logger.Info("starting ingestion", "root", root, "concurrency", p.concurrency)

	scanner := NewScanner(root, p.logger)
	stream := exec.Run(ctx, p.hashDocument, scanner.Files())

	stats := &Stats{}
	for out := range stream.All() {
		stats.Scanned++

		if out.Err != nil {
			stats.Failed++
			stats.Failures = append(stats.Failures, Failure{Path: out.Input, Err: out.Err})
			p.logger.Warn("failed to digest file", "path", out.Input, "error", out.Err)
			continue
		}

		if err := p.recordDocument(ctx, out.Value, stats); err != nil {
			stats.Failed++
			stats.Failures = append(stats.Failures, Failure{Path: out.Input, Err: err})
			p.logger.Warn("failed to record document", "path", out.Input, "error", err)
		}
	}

	if err := stream.Err(); err != nil {
		return stats, fmt.Errorf("ingestion aborted: %w", err)
	}

	p.logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"added", stats.Added,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"failed", stats.Failed)

	return stats, nil
}

// hashDocument is the per-file worker: stat and digest one file.
func (p *Pipeline) hashDocument(ctx context.Context, path string) (*core.DocumentRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	digest, err := DigestFile(path)
	if err != nil {
		return nil, err
	}

	return &core.DocumentRecord{
		Path:    path,
		Digest:  digest,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// recordDocument classifies a digested file against the stored record and
// upserts it when new or changed. A changed digest invalidates any stored
// vector, which the embed pass will regenerate.
func (p *Pipeline) recordDocument(ctx context.Context, record *core.DocumentRecord, stats *Stats) error {
	existing, err := p.repo.GetDocumentByPath(ctx, record.Path)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		existing = nil
	case err != nil:
		return err
	}

	if existing != nil && existing.Digest == record.Digest {
		stats.Unchanged++
		return nil
	}

	if _, err := p.repo.UpsertDocuments(ctx, record); err != nil {
		return err
	}

	if existing == nil {
		stats.Added++
	} else {
		stats.Updated++
	}
	return nil
}

// VerifyStats summarizes a verification run.
type VerifyStats struct {
	Checked  int
	Intact   int
	Changed  []string
	Missing  []string
	Failed   int
	Failures []Failure
}

type verifyState int

const (
	verifyIntact verifyState = iota
	verifyChanged
	verifyMissing
)

// Verify re-digests every stored document and reports files whose contents
// changed on disk or that no longer exist. The store is not modified.
func (p *Pipeline) Verify(ctx context.Context) (*VerifyStats, error) {
	records, err := p.repo.GetAllDocuments(ctx)
	if err != nil {
		return nil, err
	}

	exec, err := parallel.New[*core.DocumentRecord, verifyState](p.concurrency, p.executorOptions()...)
	if err != nil {
		return nil, err
	}

	p.logger.Info("starting verification", "documents", len(records), "concurrency", p.concurrency)

	stream := exec.RunSlice(ctx, p.verifyDocument, records)

	stats := &VerifyStats{}
	for out := range stream.All() {
		stats.Checked++

		if out.Err != nil {
			stats.Failed++
			stats.Failures = append(stats.Failures, Failure{Path: out.Input.Path, Err: out.Err})
			p.logger.Warn("failed to verify document", "path", out.Input.Path, "error", out.Err)
			continue
		}

		switch out.Value {
		case verifyIntact:
			stats.Intact++
		case verifyChanged:
			stats.Changed = append(stats.Changed, out.Input.Path)
		case verifyMissing:
			stats.Missing = append(stats.Missing, out.Input.Path)
		}
	}

	if err := stream.Err(); err != nil {
		return stats, fmt.Errorf("verification aborted: %w", err)
	}

	p.logger.Info("verification complete",
		"checked", stats.Checked,
		"intact", stats.Intact,
		"changed", len(stats.Changed),
		"missing", len(stats.Missing),
		"failed", stats.Failed)

	return stats, nil
}

// verifyDocument re-digests one stored document's file.
func (p *Pipeline) verifyDocument(ctx context.Context, record *core.DocumentRecord) (verifyState, error) {
	digest, err := DigestFile(record.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return verifyMissing, nil
		}
		return verifyIntact, err
	}

	if digest != record.Digest {
		return verifyChanged, nil
	}
	return verifyIntact, nil
}

func (p *Pipeline) executorOptions() []parallel.Option {
	opts := []parallel.Option{parallel.WithLogger(p.logger)}
	if p.failFast {
		opts = append(opts, parallel.WithErrorPolicy(parallel.AbortAll))
	}
	if p.taskTimeout > 0 {
		opts = append(opts, parallel.WithTaskTimeout(p.taskTimeout))
	}
	if p.progress != nil {
		opts = append(opts, parallel.WithProgress(p.progress))
	}
	return opts
}

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

// Package corpus tracks a corpus of files: it scans directory trees,
// digests file contents into a local store, and optionally embeds
// documents for similarity search. Bulk work runs through the parallel
// package's bounded executor.
package corpus

import (
	"io"
	"log/slog"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/ai/openai"
	"github.com/poiesic/corpus/embed"
	"github.com/poiesic/corpus/ingest"
	"github.com/poiesic/corpus/storage"
	"github.com/poiesic/corpus/storage/badger"
)

// Library is the top-level handle to a corpus store.
type Library struct {
	backend *badger.Backend
	docRepo storage.DocumentRepository
	logger  *slog.Logger

	aiConfig *ai.Config
}

// LibraryOption configures a Library.
type LibraryOption func(*libraryOptions)

type libraryOptions struct {
	aiConfig *ai.Config
}

// WithAIConfig sets the embedding service configuration used when an
// embedder is needed.
func WithAIConfig(config *ai.Config) LibraryOption {
	return func(o *libraryOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// OpenLibrary opens (creating if necessary) the corpus store at filePath.
func OpenLibrary(filePath string, opts ...LibraryOption) (*Library, error) {
	options := &libraryOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Library{
		backend:  backend,
		docRepo:  docRepo,
		logger:   slog.Default(),
		aiConfig: options.aiConfig,
	}, nil
}

// Close releases the library's resources.
func (l *Library) Close() error {
	if err := l.docRepo.Close(); err != nil {
		l.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := l.backend.Close(); err != nil {
		l.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// DocumentRepository returns the underlying document repository.
func (l *Library) DocumentRepository() storage.DocumentRepository {
	return l.docRepo
}

// NewIngestPipeline creates an ingestion pipeline over this library's store.
func (l *Library) NewIngestPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(l.docRepo, opts...)
}

// NewVectorizer creates an embedding vectorizer over this library's store,
// backed by the configured embedding service.
func (l *Library) NewVectorizer(config *embed.Config, progressWriter io.Writer) (*embed.Vectorizer, error) {
	embedder, err := openai.NewEmbedder(l.aiConfig)
	if err != nil {
		return nil, err
	}
	return embed.NewVectorizer(l.docRepo, embedder, config, progressWriter)
}

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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/ai/openai"
	"github.com/poiesic/corpus/embed"
	"github.com/poiesic/corpus/ingest"
	"github.com/poiesic/corpus/progress"
	"github.com/poiesic/corpus/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "corpus",
		Usage: "File corpus tracking with content digests and embeddings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Scan a directory tree and record file digests",
				ArgsUsage: "<root>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of files to digest at once",
						Value: 4,
					},
					&cli.DurationFlag{
						Name:  "task-timeout",
						Usage: "Per-file time limit (0 disables)",
					},
					&cli.BoolFlag{
						Name:  "fail-fast",
						Usage: "Stop on the first per-file failure",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Suppress progress output",
					},
				},
			},
			{
				Name:   "verify",
				Usage:  "Re-digest stored documents and report changed or missing files",
				Action: verifyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of files to digest at once",
						Value: 4,
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Suppress progress output",
					},
				},
			},
			{
				Name:   "embed",
				Usage:  "Generate embeddings for documents without vectors",
				Action: embedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of documents to embed at once",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	root := c.Args().First()
	if root == "" {
		return fmt.Errorf("ingest root directory is required")
	}
	if c.Int("concurrency") <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	opts := []ingest.Option{
		ingest.WithConcurrency(c.Int("concurrency")),
		ingest.WithTaskTimeout(c.Duration("task-timeout")),
		ingest.WithFailFast(c.Bool("fail-fast")),
	}

	var tracker *progress.Tracker
	if !c.Bool("quiet") {
		tracker = progress.NewTracker(os.Stderr, progress.TotalUnknown, 10)
		tracker.Start()
		opts = append(opts, ingest.WithProgress(tracker.Callback()))
	}

	pipeline, err := ingest.NewPipeline(repo, opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	stats, err := pipeline.Ingest(ctx, root)
	if tracker != nil {
		tracker.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Scanned %d files: %d added, %d updated, %d unchanged, %d failed\n",
		stats.Scanned, stats.Added, stats.Updated, stats.Unchanged, stats.Failed)
	for _, failure := range stats.Failures {
		fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", failure.Path, failure.Err)
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", stats.Failed, stats.Scanned)
	}
	return nil
}

func verifyCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.Int("concurrency") <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	opts := []ingest.Option{
		ingest.WithConcurrency(c.Int("concurrency")),
	}

	var tracker *progress.Tracker
	if !c.Bool("quiet") {
		tracker = progress.NewTracker(os.Stderr, progress.TotalUnknown, 10)
		tracker.Start()
		opts = append(opts, ingest.WithProgress(tracker.Callback()))
	}

	pipeline, err := ingest.NewPipeline(repo, opts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	stats, err := pipeline.Verify(ctx)
	if tracker != nil {
		tracker.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Checked %d documents: %d intact, %d changed, %d missing, %d failed\n",
		stats.Checked, stats.Intact, len(stats.Changed), len(stats.Missing), stats.Failed)
	for _, path := range stats.Changed {
		fmt.Printf("changed\t%s\n", path)
	}
	for _, path := range stats.Missing {
		fmt.Printf("missing\t%s\n", path)
	}
	for _, failure := range stats.Failures {
		fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", failure.Path, failure.Err)
	}

	if len(stats.Changed) > 0 || len(stats.Missing) > 0 || stats.Failed > 0 {
		return fmt.Errorf("corpus verification found discrepancies")
	}
	return nil
}

func embedCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	repo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	defer repo.Close()

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	embedConfig := &embed.Config{
		Concurrency:    c.Int("concurrency"),
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if embedConfig.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}
	if embedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if embedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	vectorizer, err := embed.NewVectorizer(repo, embedder, embedConfig, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create vectorizer: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	stats, err := vectorizer.Run(ctx)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	for _, failure := range stats.Failures {
		fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", failure.Path, failure.Err)
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to embed", stats.Failed, stats.Pending)
	}

	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

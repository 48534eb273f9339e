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
	"io/fs"
	"iter"
	"log/slog"
	"path/filepath"
)

// Scanner walks a directory tree and yields the paths of regular files.
// The walk is lazy: no directory is read until the sequence is consumed,
// and abandoning the sequence stops the walk.
type Scanner struct {
	root   string
	logger *slog.Logger
}

// NewScanner creates a scanner rooted at the given directory.
func NewScanner(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{root: root, logger: logger}
}

// Files returns a lazy sequence of regular file paths under the scanner's
// root. Unreadable entries are logged and skipped rather than terminating
// the walk.
func (s *Scanner) Files() iter.Seq[string] {
	return func(yield func(string) bool) {
		err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("skipping unreadable entry", "path", path, "error", err)
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !yield(path) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			s.logger.Error("directory walk failed", "root", s.root, "error", err)
		}
	}
}

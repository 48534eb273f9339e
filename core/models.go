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


package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is derived from document paths using content-based hashing, so the same
// path always maps to the same record.
type ID uint64

// IDFromPath generates a deterministic ID from a document path using BLAKE2b
// hashing. Identity is by path, not by content: re-ingesting a changed file
// updates its record rather than creating a new one.
func IDFromPath(path string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(path))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentRecord represents one file tracked by the corpus: its location,
// content digest, and optionally an embedding vector for semantic search.
type DocumentRecord struct {
	Id         ID
	Path       string
	Digest     string // hex BLAKE2b-256 digest of the file contents
	Size       int64
	ModTime    time.Time // file modification time observed at ingestion
	InsertedAt time.Time // when the record was first stored
	UpdatedAt  time.Time // when the record was last updated
	Vector     []float32 // embedding vector (populated by the embed pipeline)
}

// Embedded reports whether the record carries an embedding vector.
func (r *DocumentRecord) Embedded() bool {
	return len(r.Vector) > 0
}

// SearchResult represents a similarity search hit with its relevance score.
type SearchResult struct {
	Record *DocumentRecord
	Score  float32
}

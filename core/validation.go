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
	"fmt"
	"time"
)

// ValidateDocumentRecord validates a DocumentRecord according to domain rules.
//
// Validation rules:
//   - Path must not be empty
//   - Digest must not be empty
//   - Size must not be negative
//   - ModTime must not be in the future
//
// NOT validated (populated later):
//   - Vector (can be empty until the embed pipeline runs)
//   - ID (derived from the path at storage time)
func ValidateDocumentRecord(record *DocumentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidDocumentRecord)
	}

	if record.Path == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocumentRecord, ErrEmptyPath)
	}

	if record.Digest == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocumentRecord, ErrEmptyDigest)
	}

	if record.Size < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocumentRecord, ErrNegativeSize)
	}

	if !IsValidModTime(record.ModTime) {
		return fmt.Errorf("%w: %w", ErrInvalidDocumentRecord, ErrInvalidModTime)
	}

	return nil
}

// IsValidModTime checks if a modification time is valid (not in the future).
// A small skew allowance covers filesystems with coarse clocks.
func IsValidModTime(ts time.Time) bool {
	return !ts.After(time.Now().Add(time.Minute))
}

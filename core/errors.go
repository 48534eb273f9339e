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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocumentRecord indicates a DocumentRecord failed validation.
	ErrInvalidDocumentRecord = errors.New("invalid document record")

	// ErrEmptyPath indicates the Path field is empty.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrEmptyDigest indicates the Digest field is empty.
	ErrEmptyDigest = errors.New("digest cannot be empty")

	// ErrNegativeSize indicates the Size field is negative.
	ErrNegativeSize = errors.New("size cannot be negative")

	// ErrInvalidModTime indicates a modification time in the future.
	ErrInvalidModTime = errors.New("modification time cannot be in the future")
)

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


// Package ai provides abstractions for the AI services used by corpus.
//
// The package defines the Embedder interface, which generates vector
// embeddings from document text. The embed pipeline depends on this
// abstraction rather than on a concrete provider.
//
// Implementation sub-packages:
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external services
//
// Public constructors (openai.NewEmbedder) return interface types to enforce
// the abstraction; mock constructors return concrete types so tests can
// inject behavior and make assertions.
package ai

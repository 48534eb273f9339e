// Package embed generates vector embeddings for ingested documents.
//
// The vectorizer walks documents that have no stored vector, reads their
// contents, and embeds them through an ai.Embedder with bounded concurrency
// and retry. Vectors are normalized to unit length before storage so that
// similarity search can use a plain dot product.
package embed

package badger

import (
	"fmt"

	"github.com/poiesic/corpus/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "docrec"
	documentPathPrefix = "docrecp"
)

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makePathKey generates a key for the path index. Path index keys sort
// lexicographically by path, which gives GetAllDocuments its ordering.
func makePathKey(path string) []byte {
	return []byte(documentPathPrefix + ":" + path)
}

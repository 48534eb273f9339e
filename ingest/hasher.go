package ingest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/go-crypt/x/blake2b"
)

// digestChunkSize is the read buffer used when digesting file contents,
// keeping memory flat regardless of file size.
const digestChunkSize = 8 * 1024

// DigestFile computes the hex-encoded BLAKE2b-256 digest of a file's
// contents, reading in fixed-size chunks.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", fmt.Errorf("creating digest: %w", err)
	}

	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

package storage

import (
	"testing"
	"time"

	"github.com/poiesic/corpus/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	ids := []core.ID{0, 1, 255, 65536, core.IDFromPath("docs/a.txt")}

	for _, id := range ids {
		data := MarshalID(id)
		got, err := UnmarshalID(data)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestMarshalUnmarshalDocumentRecord(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := &core.DocumentRecord{
		Id:         core.IDFromPath("docs/a.txt"),
		Path:       "docs/a.txt",
		Digest:     "0011aabb",
		Size:       12345,
		ModTime:    now.Add(-time.Minute),
		InsertedAt: now,
		UpdatedAt:  now,
		Vector:     []float32{0.5, -0.25},
	}

	data := MarshalDocumentRecord(record)
	got, err := UnmarshalDocumentRecord(data)
	require.NoError(t, err)

	assert.Equal(t, record.Id, got.Id)
	assert.Equal(t, record.Path, got.Path)
	assert.Equal(t, record.Digest, got.Digest)
	assert.Equal(t, record.Size, got.Size)
	assert.True(t, record.ModTime.Equal(got.ModTime))
	assert.Equal(t, record.Vector, got.Vector)
}

func TestUnmarshalDocumentRecord_Truncated(t *testing.T) {
	record := &core.DocumentRecord{
		Id:     1,
		Path:   "docs/a.txt",
		Digest: "ff",
	}

	data := MarshalDocumentRecord(record)
	_, err := UnmarshalDocumentRecord(data[:len(data)/2])
	assert.Error(t, err, "truncated data should not deserialize")
}

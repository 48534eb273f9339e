package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for persisted domain types. Timestamps are stored as Unix
// microseconds.

// IDMUS serializes ID values.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	num, n, err := varint.Uint64.Unmarshal(bs)
	return ID(num), n, err
}

func (idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

var vectorMUS = ord.NewSliceSer[float32](raw.Float32)

// DocumentRecordMUS serializes DocumentRecord values.
var DocumentRecordMUS = documentRecordMUS{}

type documentRecordMUS struct{}

func (s documentRecordMUS) Marshal(v DocumentRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Path, bs[n:])
	n += ord.String.Marshal(v.Digest, bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += varint.Int64.Marshal(v.ModTime.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(v.InsertedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	return n
}

func (s documentRecordMUS) Unmarshal(bs []byte) (v DocumentRecord, n int, err error) {
	var n1 int
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Path, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Digest, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Size, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ModTime = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentRecordMUS) Size(v DocumentRecord) (size int) {
	size = IDMUS.Size(v.Id)
	size += ord.String.Size(v.Path)
	size += ord.String.Size(v.Digest)
	size += varint.Int64.Size(v.Size)
	size += varint.Int64.Size(v.ModTime.UnixMicro())
	size += varint.Int64.Size(v.InsertedAt.UnixMicro())
	size += varint.Int64.Size(v.UpdatedAt.UnixMicro())
	size += vectorMUS.Size(v.Vector)
	return size
}

func (s documentRecordMUS) Skip(bs []byte) (n int, err error) {
	var n1 int
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	for range 2 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	for range 4 {
		n1, err = varint.Int64.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = vectorMUS.Skip(bs[n:])
	n += n1
	return
}

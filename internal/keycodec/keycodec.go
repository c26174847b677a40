// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package keycodec provides big-endian, order-preserving encoding of the
// scalar and composite keys used by every column family. Encoding is
// big-endian so the engine's lexicographic byte order matches numeric order,
// which is what every ascending scan (forEachActivatable, forEachTimedOut,
// findBackedOffJobs) relies on.
package keycodec

import (
	"encoding/binary"

	"github.com/jontk/jobstate/pkg/errors"
)

const (
	// U64Len is the encoded width of an unsigned 64-bit integer.
	U64Len = 8
	// U16Len is the encoded width of an unsigned 16-bit integer.
	U16Len = 2
	// lenPrefixLen is the width of the length prefix on an encoded byte
	// string.
	lenPrefixLen = U16Len
)

// AppendU64 appends the big-endian encoding of v to buf and returns the
// extended slice.
func AppendU64(buf []byte, v uint64) []byte {
	var tmp [U64Len]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// AppendU16 appends the big-endian encoding of v to buf and returns the
// extended slice.
func AppendU16(buf []byte, v uint16) []byte {
	var tmp [U16Len]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// AppendBytes appends a length-prefixed byte string (u16 length, then the
// raw bytes) to buf. The length must fit in 16 bits; job types are
// documented as typically <=255 bytes, well within range.
func AppendBytes(buf []byte, v []byte) []byte {
	buf = AppendU16(buf, uint16(len(v)))
	return append(buf, v...)
}

// EncodeU64 returns the standalone big-endian encoding of v.
func EncodeU64(v uint64) []byte {
	return AppendU64(make([]byte, 0, U64Len), v)
}

// EncodeComposite encodes a composite (bytes, u64) key: a length-prefixed
// byte string followed by a big-endian u64. This is the layout used by
// JOB_ACTIVATABLE's (type, jobKey) key.
func EncodeComposite(a []byte, b uint64) []byte {
	buf := make([]byte, 0, lenPrefixLen+len(a)+U64Len)
	buf = AppendBytes(buf, a)
	buf = AppendU64(buf, b)
	return buf
}

// EncodeU64Pair encodes a composite (u64, u64) key: two big-endian u64
// values back to back. This is the layout used by JOB_DEADLINES'
// (deadline, jobKey) and JOB_BACKOFF's (recurringTime, jobKey) keys.
func EncodeU64Pair(a, b uint64) []byte {
	buf := make([]byte, 0, 2*U64Len)
	buf = AppendU64(buf, a)
	buf = AppendU64(buf, b)
	return buf
}

// DecodeU64 borrows the first 8 bytes of buf as a big-endian uint64 and
// returns the value along with the remaining, unconsumed slice.
func DecodeU64(buf []byte) (uint64, []byte, error) {
	if len(buf) < U64Len {
		return 0, nil, errors.NewCorruptKeyf(buf, nil, "truncated u64: want %d bytes, have %d", U64Len, len(buf))
	}
	return binary.BigEndian.Uint64(buf[:U64Len]), buf[U64Len:], nil
}

// DecodeU16 borrows the first 2 bytes of buf as a big-endian uint16 and
// returns the value along with the remaining, unconsumed slice.
func DecodeU16(buf []byte) (uint16, []byte, error) {
	if len(buf) < U16Len {
		return 0, nil, errors.NewCorruptKeyf(buf, nil, "truncated u16: want %d bytes, have %d", U16Len, len(buf))
	}
	return binary.BigEndian.Uint16(buf[:U16Len]), buf[U16Len:], nil
}

// DecodeBytes borrows a length-prefixed byte string from the front of buf.
// The returned slice aliases buf; callers that need to retain it across a
// mutation of the underlying buffer must copy it first.
func DecodeBytes(buf []byte) ([]byte, []byte, error) {
	length, rest, err := DecodeU16(buf)
	if err != nil {
		return nil, nil, errors.NewCorruptKeyf(buf, err, "decoding length prefix")
	}
	if len(rest) < int(length) {
		return nil, nil, errors.NewCorruptKeyf(buf, nil, "truncated byte string: want %d bytes, have %d", length, len(rest))
	}
	return rest[:length], rest[length:], nil
}

// DecodeComposite decodes a (bytes, u64) composite key, returning the
// borrowed byte string, the trailing u64, and an error on truncation.
func DecodeComposite(buf []byte) ([]byte, uint64, error) {
	a, rest, err := DecodeBytes(buf)
	if err != nil {
		return nil, 0, err
	}
	b, _, err := DecodeU64(rest)
	if err != nil {
		return nil, 0, err
	}
	return a, b, nil
}

// DecodeU64Pair decodes a (u64, u64) composite key.
func DecodeU64Pair(buf []byte) (uint64, uint64, error) {
	a, rest, err := DecodeU64(buf)
	if err != nil {
		return 0, 0, err
	}
	b, _, err := DecodeU64(rest)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

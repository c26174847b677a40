// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package jobrecord serializes and deserializes the JobRecord described in
// spec.md §6: typeBuffer/deadline/retries/retryBackoff/recurringTime
// accessors, setRetries, and a "without variables" projection. The wire
// format is a deterministic, length-prefixed binary layout in a fixed field
// order, built on keycodec's append/decode primitives rather than a
// general-purpose marshaler — no example repo in the pack exercises a
// serialization library for this exact record shape (see DESIGN.md).
package jobrecord

import (
	"encoding/binary"

	"github.com/jontk/jobstate/internal/keycodec"
	"github.com/jontk/jobstate/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// Record is the in-memory representation of a job's attributes, per
// spec.md §3 Entities.
type Record struct {
	typ           []byte
	retries       int32
	retryBackoff  uint64
	recurringTime uint64
	deadline      uint64
	variables     []byte
	body          []byte
}

// New builds a Record for jobType, normalized per NormalizeType.
func New(jobType []byte) *Record {
	return &Record{typ: NormalizeType(jobType)}
}

// NormalizeType runs a job type through NFC normalization so that
// visually-identical type names arriving from different workflow
// definitions collate and compare as the same ordered-key prefix in
// JOB_ACTIVATABLE.
func NormalizeType(t []byte) []byte {
	if len(t) == 0 {
		return t
	}
	return norm.NFC.Bytes(t)
}

// TypeBuffer returns the job's type as raw bytes.
func (r *Record) TypeBuffer() []byte { return r.typ }

// SetType sets the job's type, normalizing it first.
func (r *Record) SetType(t []byte) { r.typ = NormalizeType(t) }

// Deadline returns the absolute millisecond timestamp by which an activated
// job must be completed.
func (r *Record) Deadline() uint64 { return r.deadline }

// SetDeadline sets the activation deadline.
func (r *Record) SetDeadline(d uint64) { r.deadline = d }

// Retries returns the remaining retry count.
func (r *Record) Retries() int32 { return r.retries }

// SetRetries sets the remaining retry count. Per spec.md §9 Open Question
// (a), this alone never drives the job's state machine transition.
func (r *Record) SetRetries(n int32) { r.retries = n }

// RetryBackoff returns the non-negative backoff, in milliseconds, applied
// before a failed job may recur.
func (r *Record) RetryBackoff() uint64 { return r.retryBackoff }

// SetRetryBackoff sets the retry backoff.
func (r *Record) SetRetryBackoff(b uint64) { r.retryBackoff = b }

// RecurringTime returns the absolute millisecond timestamp at which a
// backed-off job becomes activatable again.
func (r *Record) RecurringTime() uint64 { return r.recurringTime }

// SetRecurringTime sets the recurring time.
func (r *Record) SetRecurringTime(t uint64) { r.recurringTime = t }

// Variables returns the job's opaque variable buffer. Never persisted by
// the JOBS column family; see WithoutVariables.
func (r *Record) Variables() []byte { return r.variables }

// SetVariables sets the job's variable buffer.
func (r *Record) SetVariables(v []byte) { r.variables = v }

// Body returns the remaining opaque record body not otherwise modeled by
// this package's typed accessors.
func (r *Record) Body() []byte { return r.body }

// SetBody sets the opaque record body.
func (r *Record) SetBody(b []byte) { r.body = b }

// WithoutVariables returns a copy of r with Variables stripped — the
// projection the JOBS column family always persists, satisfying invariant 6
// of spec.md §3 ("Persisted JobRecord never carries variables").
func (r *Record) WithoutVariables() *Record {
	cp := *r
	cp.variables = nil
	return &cp
}

// SetRecordWithoutVariables populates every field of r from other except
// variables, matching spec.md §6's JobRecord contract.
func (r *Record) SetRecordWithoutVariables(other *Record) {
	r.typ = other.typ
	r.retries = other.retries
	r.retryBackoff = other.retryBackoff
	r.recurringTime = other.recurringTime
	r.deadline = other.deadline
	r.body = other.body
	r.variables = nil
}

// Encode serializes r into a deterministic, round-trip-stable binary
// buffer: type, retries, retryBackoff, recurringTime, deadline, variables,
// body, each length-prefixed or fixed-width in that fixed order.
func Encode(r *Record) []byte {
	buf := make([]byte, 0, 64+len(r.typ)+len(r.variables)+len(r.body))
	buf = keycodec.AppendBytes(buf, r.typ)
	buf = appendI32(buf, r.retries)
	buf = keycodec.AppendU64(buf, r.retryBackoff)
	buf = keycodec.AppendU64(buf, r.recurringTime)
	buf = keycodec.AppendU64(buf, r.deadline)
	buf = keycodec.AppendBytes(buf, r.variables)
	buf = keycodec.AppendBytes(buf, r.body)
	return buf
}

// Decode deserializes a Record previously produced by Encode. Decoded byte
// slices are copied out of buf so the returned Record does not alias the
// caller's buffer — the store keeps one read-side and one write-side
// Record per spec.md §9 to avoid aliasing a read with an in-progress Put on
// the same column family.
func Decode(buf []byte) (*Record, error) {
	typ, rest, err := keycodec.DecodeBytes(buf)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding job type", err)
	}

	retries, rest, err := decodeI32(rest)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding retries", err)
	}

	retryBackoff, rest, err := keycodec.DecodeU64(rest)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding retry backoff", err)
	}

	recurringTime, rest, err := keycodec.DecodeU64(rest)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding recurring time", err)
	}

	deadline, rest, err := keycodec.DecodeU64(rest)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding deadline", err)
	}

	variables, rest, err := keycodec.DecodeBytes(rest)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding variables", err)
	}

	body, _, err := keycodec.DecodeBytes(rest)
	if err != nil {
		return nil, errors.NewCorruptValue("decoding body", err)
	}

	return &Record{
		typ:           append([]byte(nil), typ...),
		retries:       retries,
		retryBackoff:  retryBackoff,
		recurringTime: recurringTime,
		deadline:      deadline,
		variables:     append([]byte(nil), variables...),
		body:          append([]byte(nil), body...),
	}, nil
}

func appendI32(buf []byte, v int32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	return append(buf, tmp[:]...)
}

func decodeI32(buf []byte) (int32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, errors.NewCorruptValue("truncated i32 field", nil)
	}
	return int32(binary.BigEndian.Uint32(buf[:4])), buf[4:], nil
}

// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package jobstate

import (
	"github.com/jontk/jobstate/internal/jobrecord"
	"github.com/jontk/jobstate/internal/kvengine"
)

// Exists reports whether key has a JOB_STATES entry.
func (c *Core) Exists(txn *kvengine.Txn, key uint64) (bool, error) {
	return txn.Handle(kvengine.CFJobStates).Exists(jobKeyBytes(key))
}

// GetState returns key's current lifecycle state, or StateNotFound if key
// has no JOB_STATES entry.
func (c *Core) GetState(txn *kvengine.Txn, key uint64) (State, error) {
	value, ok, err := txn.Handle(kvengine.CFJobStates).Get(jobKeyBytes(key))
	if err != nil {
		return StateNotFound, err
	}
	if !ok {
		return StateNotFound, nil
	}
	return decodeState(value), nil
}

// IsInState reports whether key's current state equals s.
func (c *Core) IsInState(txn *kvengine.Txn, key uint64, s State) (bool, error) {
	current, err := c.GetState(txn, key)
	if err != nil {
		return false, err
	}
	return current == s, nil
}

// GetJob returns key's JobRecord (variables always empty, per invariant 6
// of spec.md §3), or ok=false if key has no JOBS entry.
func (c *Core) GetJob(txn *kvengine.Txn, key uint64) (*jobrecord.Record, bool, error) {
	value, ok, err := txn.Handle(kvengine.CFJobs).Get(jobKeyBytes(key))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	rec, err := jobrecord.Decode(value)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (c *Core) setState(txn *kvengine.Txn, key uint64, s State) error {
	return txn.Handle(kvengine.CFJobStates).Put(jobKeyBytes(key), encodeState(s))
}

func (c *Core) putJob(txn *kvengine.Txn, key uint64, rec *jobrecord.Record) error {
	stripped := rec.WithoutVariables()
	return txn.Handle(kvengine.CFJobs).Put(jobKeyBytes(key), jobrecord.Encode(stripped))
}

// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package jobstate

import "github.com/jontk/jobstate/internal/keycodec"

// jobKeyBytes encodes a jobKey for use against CFJobs/CFJobStates, whose
// keys are a bare big-endian u64 per spec.md §3.
func jobKeyBytes(key uint64) []byte {
	return keycodec.EncodeU64(key)
}

// activatableKey encodes a (type, jobKey) composite key for CFJobActivatable.
func activatableKey(jobType []byte, key uint64) []byte {
	return keycodec.EncodeComposite(jobType, key)
}

// deadlineKey encodes a (deadline, jobKey) composite key for CFJobDeadlines.
func deadlineKey(deadline, key uint64) []byte {
	return keycodec.EncodeU64Pair(deadline, key)
}

// backoffKey encodes a (recurringTime, jobKey) composite key for CFJobBackoff.
func backoffKey(recurringTime, key uint64) []byte {
	return keycodec.EncodeU64Pair(recurringTime, key)
}

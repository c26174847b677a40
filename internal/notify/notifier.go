// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package notify holds the single optional job-availability callback
// described in spec.md §4.5: fired with a job type every time a job of
// that type enters ACTIVATABLE, with no de-duplication — the consumer
// coalesces if it wants to. Fire-and-forget: a nil callback disables
// notifications, and only the most recently registered callback is used.
package notify

import (
	"sync"

	"github.com/jontk/jobstate/pkg/logging"
)

// Callback is invoked with a job type whenever a new job of that type
// becomes activatable.
type Callback func(jobType string)

// Notifier holds the single registered Callback. Safe for concurrent
// SetCallback/Notify calls even though spec.md §5 describes a
// single-threaded core, since the callback itself may be registered from a
// different goroutine than the one driving transactions (e.g. at startup).
type Notifier struct {
	mu       sync.RWMutex
	callback Callback
	logger   logging.Logger
}

// New builds a Notifier with no callback registered.
func New(logger logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Notifier{logger: logger}
}

// SetCallback registers cb as the single listener, replacing any
// previously registered callback. A nil cb disables notifications.
func (n *Notifier) SetCallback(cb Callback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callback = cb
}

// Notify invokes the registered callback, if any, with jobType. Invoked
// synchronously on the transaction-applying thread per spec.md §4.5. A
// panicking callback is treated as a non-fatal event: it is recovered,
// logged, and does not propagate to the caller, since the enclosing
// transaction must not be aborted by a misbehaving listener.
func (n *Notifier) Notify(jobType string) {
	n.mu.RLock()
	cb := n.callback
	n.mu.RUnlock()

	if cb == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("jobs-available callback panicked", "job_type", jobType, "panic", r)
		}
	}()
	cb(jobType)
}

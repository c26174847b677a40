// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package jobstate

import (
	"github.com/jontk/jobstate/internal/notify"
	"github.com/jontk/jobstate/pkg/errors"
	"github.com/jontk/jobstate/pkg/logging"
	"github.com/jontk/jobstate/pkg/metrics"
)

// Core is the transactional job state machine for one partition. It owns
// no transaction itself — every exported method takes the caller's
// *kvengine.Txn, per spec.md §4.4's "all operations below execute inside a
// single transaction provided by the caller" precondition. Core holds no
// lock; exclusion across its methods is by the single-command-processor
// ownership model of spec.md §5, not by mutex.
type Core struct {
	partitionID       uint32
	notifier          *notify.Notifier
	collector         metrics.JobEventCollector
	logger            logging.Logger
	strictTransitions bool
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithStrictTransitions enables the debug-mode transition assertions
// spec.md §4.4 suggests implementers add ("implementers should add
// debug-mode assertions on the transitions listed"). Off by default,
// matching the source's "not defensively rejected by the store" posture.
func WithStrictTransitions(strict bool) Option {
	return func(c *Core) { c.strictTransitions = strict }
}

// WithNotifier overrides the Core's notifier. Exists mainly for tests that
// want to observe notifications without wiring a full Store.
func WithNotifier(n *notify.Notifier) Option {
	return func(c *Core) {
		if n != nil {
			c.notifier = n
		}
	}
}

// New builds a Core for partitionID with the given metrics collector and
// logger, applying options in order.
func New(partitionID uint32, collector metrics.JobEventCollector, logger logging.Logger, opts ...Option) *Core {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	c := &Core{
		partitionID: partitionID,
		notifier:    notify.New(logger),
		collector:   collector,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Notifier returns the Core's notifier, so callers may register the single
// jobs-available listener described in spec.md §4.5.
func (c *Core) Notifier() *notify.Notifier { return c.notifier }

// assertTransition checks current against the allowed "from" states for an
// operation when strict transitions are enabled. It is a no-op otherwise,
// matching spec.md §4.4's closing paragraph: illegal transitions are not
// defensively rejected by default.
func (c *Core) assertTransition(op string, current State, allowed ...State) error {
	if !c.strictTransitions {
		return nil
	}
	for _, a := range allowed {
		if current == a {
			return nil
		}
	}
	return errors.NewEngineError(
		"illegal state transition: "+op+" from "+current.String(),
		nil,
		false,
	)
}

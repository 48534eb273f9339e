// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package parallel

import (
	"log/slog"
	"time"
)

// TotalUnknown is passed to progress callbacks when the input source's
// length cannot be determined ahead of time.
const TotalUnknown = -1

// ErrorPolicy controls how the executor reacts to failed tasks.
type ErrorPolicy int

const (
	// Continue reports failures in the outcome stream and keeps dispatching.
	// This is the default: a bulk operation should complete as much useful
	// work as possible under partial failure.
	Continue ErrorPolicy = iota

	// AbortAll stops dispatching new tasks after the first failure. In-flight
	// tasks are allowed to finish and their outcomes are still emitted, then
	// the stream ends early with ErrAborted.
	AbortAll
)

// ProgressFunc is called once per completed task with the number of tasks
// finished so far and the total input count, or TotalUnknown for lazy
// sources. Calls are serialized by the executor.
type ProgressFunc func(completed, total int)

// Option configures an Executor.
type Option func(*config)

type config struct {
	policy      ErrorPolicy
	taskTimeout time.Duration
	progress    ProgressFunc
	logger      *slog.Logger
}

func defaultConfig() config {
	return config{
		policy: Continue,
		logger: slog.Default(),
	}
}

// WithErrorPolicy sets how the executor reacts to failed tasks.
// Default is Continue.
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(c *config) {
		c.policy = policy
	}
}

// WithTaskTimeout bounds the wall-clock duration of each task. A task
// exceeding the timeout is recorded as an ErrTaskTimeout failure and its
// slot is reclaimed immediately; the underlying worker call is abandoned
// rather than forcibly terminated. Zero or negative disables the timeout.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.taskTimeout = timeout
	}
}

// WithProgress sets a callback invoked once per completed task.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

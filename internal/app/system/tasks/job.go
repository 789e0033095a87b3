// Package tasks defines the periodic jobs run by the background scheduler.
package tasks

import (
	"context"
	"time"
)

// Job is a named unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration
	// Exclusive jobs take a cluster-wide lease before each run so only one
	// instance executes them.
	Exclusive bool
	// RunOnStart runs the job once immediately instead of waiting one interval.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

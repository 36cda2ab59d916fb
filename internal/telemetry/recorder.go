// Package telemetry exports engine metrics over OTLP. When disabled the
// engine gets a NoOp recorder and nothing leaves the process
package telemetry

import "context"

// Recorder receives engine events worth counting
type Recorder interface {
	// TxFinished records one coordinated unit of work
	TxFinished(ctx context.Context, op string, attempts int, err error)
	// TimerStopped records a stopped timer and its elapsed seconds
	TimerStopped(ctx context.Context, billable bool, seconds int64)
	// DriftDetected records one consistency warning by kind
	DriftDetected(ctx context.Context, kind string)
	// CountersRepaired records clients whose counters were rewritten
	CountersRepaired(ctx context.Context, n int)
	Close(ctx context.Context) error
}

// NoOp is a Recorder that drops everything
type NoOp struct{}

var _ Recorder = NoOp{}

func (NoOp) TxFinished(context.Context, string, int, error) {}
func (NoOp) TimerStopped(context.Context, bool, int64)      {}
func (NoOp) DriftDetected(context.Context, string)          {}
func (NoOp) CountersRepaired(context.Context, int)          {}
func (NoOp) Close(context.Context) error                    { return nil }

package shared

import "context"

// ErrorReporter receives errors that must be surfaced to operators without
// interrupting the caller, such as a single reservation failing inside a
// monthly batch.
type ErrorReporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// NopReporter discards every report.
type NopReporter struct{}

// Report implements ErrorReporter
func (NopReporter) Report(context.Context, error, map[string]string) {}

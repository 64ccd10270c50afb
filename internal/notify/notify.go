// Package notify delivers budget alerts to the outside world.
package notify

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/budget"
	applog "fintrack/internal/log"
)

// Notifier delivers a batch of alerts. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alerts []budget.Alert) error
}

// LogNotifier writes each alert as a structured warning.
type LogNotifier struct {
	logger *applog.StructuredLogger
}

func NewLogNotifier(logger *applog.Logger) *LogNotifier {
	return &LogNotifier{logger: applog.NewStructuredLogger(logger.WithComponent(applog.ComponentNotify))}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(ctx context.Context, alerts []budget.Alert) error {
	for _, a := range alerts {
		n.logger.LogAlert(ctx, a.Period, a.Label, a.Severity.String(), a.Message)
	}
	return nil
}

// Multi fans a batch out to every notifier. One failing notifier does not
// stop the others; their errors are joined.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, alerts []budget.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alerts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

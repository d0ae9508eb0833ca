package planner

import (
	"context"
	"log/slog"

	"github.com/ruteri/templatizer-backend/interfaces"
	"github.com/ruteri/templatizer-backend/metrics"
)

// LogExecutor records each plan entry in the log. It stands in for the
// clone, copy and pull request machinery.
type LogExecutor struct {
	log     *slog.Logger
	metrics *metrics.Collectors
}

func NewLogExecutor(log *slog.Logger, collectors *metrics.Collectors) *LogExecutor {
	if log == nil {
		log = slog.Default()
	}
	if collectors == nil {
		collectors = metrics.Nop()
	}
	return &LogExecutor{log: log, metrics: collectors}
}

func (e *LogExecutor) Execute(ctx context.Context, plan *interfaces.Plan) error {
	if plan.Empty() {
		return nil
	}

	for _, entry := range plan.Entries {
		if len(entry.Subscribers) == 0 {
			e.log.Info("Source set changed without subscribers",
				slog.String("delivery", plan.DeliveryID),
				slog.String("group", entry.GroupRef),
				slog.String("commit", entry.CommitID))
			continue
		}

		targets := make([]string, 0, len(entry.Subscribers))
		for _, sub := range entry.Subscribers {
			targets = append(targets, sub.Repository)
		}
		e.log.Info("Propagation planned",
			slog.String("delivery", plan.DeliveryID),
			slog.String("group", entry.GroupRef),
			slog.String("commit", entry.CommitID),
			slog.Any("paths", entry.MatchedPaths),
			slog.Any("subscribers", targets))
	}

	e.metrics.PlanEntries.Add(float64(len(plan.Entries)))
	return nil
}

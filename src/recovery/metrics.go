package recovery

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Blackdeer1524/btredo/src/pkg/utils"
)

const meterName = "github.com/Blackdeer1524/btredo/src/recovery"

type replayMetrics struct {
	records   metric.Int64Counter
	skipped   metric.Int64Counter
	conflicts metric.Int64Counter
	finished  metric.Int64Counter
}

func newReplayMetrics() *replayMetrics {
	meter := otel.Meter(meterName)

	return &replayMetrics{
		records: utils.Must(meter.Int64Counter(
			"btredo.replay.records",
			metric.WithDescription("log records replayed, by kind"),
		)),
		skipped: utils.Must(meter.Int64Counter(
			"btredo.replay.pages_skipped",
			metric.WithDescription("page writes skipped because the page was already fresh"),
		)),
		conflicts: utils.Must(meter.Int64Counter(
			"btredo.replay.conflicts",
			metric.WithDescription("recovery conflicts reported to the standby registry"),
		)),
		finished: utils.Must(meter.Int64Counter(
			"btredo.replay.actions_finished",
			metric.WithDescription("incomplete actions finished by the end-of-log pass"),
		)),
	}
}

func (m *replayMetrics) recordReplayed(kind RecordKind) {
	m.records.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (m *replayMetrics) pageSkipped(kind RecordKind) {
	m.skipped.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (m *replayMetrics) conflictReported() {
	m.conflicts.Add(context.Background(), 1)
}

func (m *replayMetrics) actionFinished(action string) {
	m.finished.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("action", action)))
}

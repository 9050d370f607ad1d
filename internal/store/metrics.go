package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const metricColumns = "id, published_id, metric_type, value, recorded_at, created_at"

// MetricFilter narrows QueryMetrics.
type MetricFilter struct {
	PublishedID int64
	Types       []MetricType
	Since       time.Time
	Limit       int
}

// InsertMetric appends one performance sample.
func (s *Store) InsertMetric(ctx context.Context, metric *Metric) (*Metric, error) {
	if metric == nil {
		return nil, errors.New("metric is nil")
	}
	if metric.Type == "" {
		return nil, errors.New("metric type is required")
	}
	recordedAt := metric.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	id, err := s.insert(ctx, sq.Insert("performance_metrics").
		Columns("published_id", "metric_type", "value", "recorded_at", "created_at").
		Values(metric.PublishedID, metric.Type, metric.Value, formatTime(recordedAt), s.timestamp()))
	if err != nil {
		return nil, fmt.Errorf("insert metric: %w", err)
	}
	stored := *metric
	stored.ID = id
	stored.RecordedAt = recordedAt.UTC()
	return &stored, nil
}

// QueryMetrics lists samples ordered by recording time.
func (s *Store) QueryMetrics(ctx context.Context, filter MetricFilter) ([]*Metric, error) {
	builder := sq.Select(metricColumns).From("performance_metrics").OrderBy("recorded_at", "id")
	if filter.PublishedID > 0 {
		builder = builder.Where(sq.Eq{"published_id": filter.PublishedID})
	}
	if len(filter.Types) > 0 {
		builder = builder.Where(sq.Eq{"metric_type": toStrings(filter.Types)})
	}
	builder = applyWindow(builder, "recorded_at", filter.Since, filter.Limit)
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	return collect(rows, scanMetric)
}

// AverageMetrics aggregates samples recorded since the cutoff per content item and metric type.
func (s *Store) AverageMetrics(ctx context.Context, since time.Time) ([]MetricAverage, error) {
	builder := sq.Select("c.id", "c.title", "m.metric_type", "AVG(m.value)", "COUNT(m.id)").
		From("performance_metrics m").
		Join("published_content p ON p.id = m.published_id").
		Join("generated_content c ON c.id = p.content_id").
		GroupBy("c.id", "c.title", "m.metric_type").
		OrderBy("c.id", "m.metric_type")
	if !since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"m.recorded_at": formatTime(since)})
	}
	rows, err := s.queryBuilder(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("average metrics: %w", err)
	}
	defer rows.Close()

	var out []MetricAverage
	for rows.Next() {
		var (
			avg        MetricAverage
			metricType string
		)
		if err := rows.Scan(&avg.ContentID, &avg.Title, &metricType, &avg.Average, &avg.Samples); err != nil {
			return nil, fmt.Errorf("scan metric average: %w", err)
		}
		avg.Type = MetricType(metricType)
		out = append(out, avg)
	}
	return out, rows.Err()
}

func scanMetric(row scanner) (*Metric, error) {
	var (
		metric      Metric
		metricType  string
		recordedRaw string
		createdRaw  string
	)
	if err := row.Scan(&metric.ID, &metric.PublishedID, &metricType, &metric.Value, &recordedRaw, &createdRaw); err != nil {
		return nil, fmt.Errorf("scan metric: %w", err)
	}
	metric.Type = MetricType(metricType)
	metric.RecordedAt = parseTime(recordedRaw)
	metric.CreatedAt = parseTime(createdRaw)
	return &metric, nil
}

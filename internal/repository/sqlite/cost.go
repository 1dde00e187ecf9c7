package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/repository"
)

// compile-time check that *DB implements repository.CostRepository
var _ repository.CostRepository = (*DB)(nil)

// ListSeries returns the samples of one cost series ordered by date.
//
// The stored total column is ignored on read: Total is re-derived as the
// sum of the components, so a hand-edited row can never serve a sample
// that violates the total-equals-sum invariant.
func (db *DB) ListSeries(ctx context.Context, series model.CostSeries) ([]model.CostSample, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date, sagemaker, s3, ses
		 FROM cost_samples WHERE series = ? ORDER BY date`,
		string(series),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s cost samples: %w", series, err)
	}
	defer rows.Close()

	var samples []model.CostSample
	for rows.Next() {
		var s model.CostSample
		if err := rows.Scan(&s.Date, &s.SageMaker, &s.S3, &s.SES); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cost sample: %w", err)
		}
		s.Total = s.SageMaker + s.S3 + s.SES
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cost samples: %w", err)
	}

	return samples, nil
}

// costSeed is one row of demo spend data.
type costSeed struct {
	series    model.CostSeries
	date      string
	sagemaker float64
	s3        float64
	ses       float64
}

// costSeeds is the demo data the dashboard ships with: a week of
// "actual" spend followed by five days of "predicted" spend.
var costSeeds = []costSeed{
	{model.SeriesActual, "2025-01-01", 25.30, 1.50, 0.20},
	{model.SeriesActual, "2025-01-02", 28.45, 1.60, 0.25},
	{model.SeriesActual, "2025-01-03", 31.20, 1.75, 0.30},
	{model.SeriesActual, "2025-01-04", 35.60, 1.90, 0.35},
	{model.SeriesActual, "2025-01-05", 38.90, 2.10, 0.40},
	{model.SeriesActual, "2025-01-06", 42.30, 2.30, 0.45},
	{model.SeriesActual, "2025-01-07", 45.80, 2.50, 0.50},
	{model.SeriesPredicted, "2025-01-08", 48.15, 2.65, 0.52},
	{model.SeriesPredicted, "2025-01-09", 50.25, 2.78, 0.55},
	{model.SeriesPredicted, "2025-01-10", 52.76, 2.92, 0.58},
	{model.SeriesPredicted, "2025-01-11", 55.40, 3.07, 0.61},
	{model.SeriesPredicted, "2025-01-12", 58.17, 3.23, 0.64},
}

// seedCostSamples inserts the demo series on first start. A non-empty
// table means we've seeded before (or the operator loaded real data), so
// it is left alone.
func (db *DB) seedCostSamples() error {
	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM cost_samples`).Scan(&count); err != nil {
		return fmt.Errorf("counting cost samples: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, s := range costSeeds {
		_, err := db.conn.Exec(
			`INSERT INTO cost_samples (series, date, sagemaker, s3, ses, total)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(s.series), s.date, s.sagemaker, s.s3, s.ses,
			s.sagemaker+s.s3+s.ses,
		)
		if err != nil {
			return fmt.Errorf("inserting seed sample %s/%s: %w", s.series, s.date, err)
		}
	}

	return nil
}

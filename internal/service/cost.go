package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/repository"
)

// Forecast horizon limits. The seed history is a week of dailies;
// projecting months out of that would be numerology, not forecasting.
const (
	DefaultForecastDays = 5
	MaxForecastDays     = 30
)

const dateLayout = "2006-01-02"

// CostService serves the stored cost series and computes spend forecasts.
type CostService struct {
	repo   repository.CostRepository
	logger *slog.Logger
}

// NewCostService creates a CostService.
func NewCostService(repo repository.CostRepository, logger *slog.Logger) *CostService {
	return &CostService{repo: repo, logger: logger}
}

// History returns the "actual" spend series, oldest first.
func (s *CostService) History(ctx context.Context) ([]model.CostSample, error) {
	samples, err := s.repo.ListSeries(ctx, model.SeriesActual)
	if err != nil {
		return nil, fmt.Errorf("loading cost history: %w", err)
	}
	return samples, nil
}

// Predicted returns the seeded "predicted" series, oldest first.
func (s *CostService) Predicted(ctx context.Context) ([]model.CostSample, error) {
	samples, err := s.repo.ListSeries(ctx, model.SeriesPredicted)
	if err != nil {
		return nil, fmt.Errorf("loading predicted costs: %w", err)
	}
	return samples, nil
}

// Forecast projects total spend `days` past the last actual sample using
// a least-squares linear regression over the actual totals.
//
// The per-service split of each forecast day follows the proportions of
// the most recent actual sample, and the total is recomputed as the sum
// of the rounded components — so every forecast sample satisfies the same
// total-equals-sum invariant as stored data.
//
// Needs at least two actual samples; a line through one point is
// whatever you want it to be.
func (s *CostService) Forecast(ctx context.Context, days int) ([]model.CostSample, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}
	if days > MaxForecastDays {
		return nil, apperror.ValidationFailed("days",
			fmt.Sprintf("forecast horizon must be %d days or fewer", MaxForecastDays))
	}

	actual, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	if len(actual) < 2 {
		return nil, apperror.ValidationFailed("history",
			"at least two days of cost history are required to forecast")
	}

	last := actual[len(actual)-1]
	lastDate, err := time.Parse(dateLayout, last.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing last sample date %q: %w", last.Date, err)
	}

	slope, intercept, err := fitTotals(actual)
	if err != nil {
		return nil, fmt.Errorf("fitting cost history: %w", err)
	}

	// Per-service shares of the most recent day's spend. The last total
	// is a sum of non-negative components, so it's only zero when all
	// components are — in that case everything below stays zero too.
	smShare, s3Share, sesShare := 0.0, 0.0, 0.0
	if last.Total > 0 {
		smShare = last.SageMaker / last.Total
		s3Share = last.S3 / last.Total
		sesShare = last.SES / last.Total
	}

	n := float64(len(actual))
	forecast := make([]model.CostSample, 0, days)
	for day := 1; day <= days; day++ {
		total := intercept + slope*(n-1+float64(day))
		if total < 0 {
			total = 0 // spend can trend down, but not below zero
		}

		sample := model.CostSample{
			Date:      lastDate.AddDate(0, 0, day).Format(dateLayout),
			SageMaker: roundCents(total * smShare),
			S3:        roundCents(total * s3Share),
			SES:       roundCents(total * sesShare),
		}
		sample.Total = sample.SageMaker + sample.S3 + sample.SES
		forecast = append(forecast, sample)
	}

	s.logger.Debug("cost forecast computed",
		slog.Int("days", days),
		slog.Float64("slope", slope),
	)

	return forecast, nil
}

// fitTotals runs a linear regression over the totals (x = day index) and
// recovers the line's slope and intercept from the fitted series.
func fitTotals(samples []model.CostSample) (slope, intercept float64, err error) {
	series := make(stats.Series, len(samples))
	for i, s := range samples {
		series[i] = stats.Coordinate{X: float64(i), Y: s.Total}
	}

	fitted, err := stats.LinearRegression(series)
	if err != nil {
		return 0, 0, err
	}

	first, lastPt := fitted[0], fitted[len(fitted)-1]
	slope = (lastPt.Y - first.Y) / (lastPt.X - first.X)
	intercept = first.Y - slope*first.X
	return slope, intercept, nil
}

// roundCents rounds to two decimal places. Costs are dollars.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

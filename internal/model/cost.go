package model

// CostSeries names the two stored cost sequences.
type CostSeries string

const (
	SeriesActual    CostSeries = "actual"    // historical spend
	SeriesPredicted CostSeries = "predicted" // seeded projection
)

// CostSample is one dated spend record in a cost series.
//
// Samples are immutable once written. Dates use the "2006-01-02" layout —
// the series is daily, so a full timestamp would only invite timezone
// trouble.
//
// The same Total == SageMaker + S3 + SES invariant as CostBreakdown
// applies; the repository re-derives Total on read so a hand-edited
// database row can't serve an inconsistent sample.
type CostSample struct {
	Date      string  `json:"date"`
	SageMaker float64 `json:"sagemaker"`
	S3        float64 `json:"s3"`
	SES       float64 `json:"ses"`
	Total     float64 `json:"total"`
}

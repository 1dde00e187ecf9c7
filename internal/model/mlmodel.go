package model

import "time"

// ModelType enumerates the kinds of models the dashboard can deploy.
type ModelType string

const (
	TypeLinearRegression ModelType = "linear-regression"
	TypeXGBoost          ModelType = "xgboost"
	TypeLLM              ModelType = "llm"
)

// IsValid reports whether t is one of the known model types.
func (t ModelType) IsValid() bool {
	switch t {
	case TypeLinearRegression, TypeXGBoost, TypeLLM:
		return true
	}
	return false
}

// Status is the lifecycle state of a deployed model.
//
// STATE MACHINE:
//
//	training → deploying → active → stopped → training (restart)
//	training/deploying → failed (explicit error signal)
//	any state → deleted (record removed entirely)
//
// The training→deploying and deploying→active edges fire automatically on
// timers (see service.ModelRegistry). Everything else is an explicit user
// or pipeline action.
type Status string

const (
	StatusTraining  Status = "training"
	StatusDeploying Status = "deploying"
	StatusActive    Status = "active"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// InFlight reports whether the model is still moving through the simulated
// deployment pipeline, i.e. a timer is (or should be) pending for it.
func (s Status) InFlight() bool {
	return s == StatusTraining || s == StatusDeploying
}

// CostBreakdown is the per-service spend attached to a model.
//
// INVARIANT: Total == SageMaker + S3 + SES, and no component is negative.
// Construct values through NewCostBreakdown so the invariant holds by
// construction instead of by hope.
type CostBreakdown struct {
	Total     float64 `json:"total"`
	SageMaker float64 `json:"sagemaker"`
	S3        float64 `json:"s3"`
	SES       float64 `json:"ses"`
}

// NewCostBreakdown builds a CostBreakdown whose Total is the sum of the
// components.
func NewCostBreakdown(sagemaker, s3, ses float64) CostBreakdown {
	return CostBreakdown{
		Total:     sagemaker + s3 + ses,
		SageMaker: sagemaker,
		S3:        s3,
		SES:       ses,
	}
}

// Model represents a simulated deployable ML model tracked by the registry.
//
// Endpoint is populated only once the model reaches StatusActive; it is
// derived from the name, not stored user input. FailureReason is set only
// in StatusFailed.
type Model struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          ModelType     `json:"type"`
	Status        Status        `json:"status"`
	Endpoint      string        `json:"endpoint,omitempty"`
	Cost          CostBreakdown `json:"cost"`
	FailureReason string        `json:"failureReason,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

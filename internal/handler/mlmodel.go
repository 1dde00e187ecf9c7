package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ml-finops/internal/apperror"
	"github.com/sakif/ml-finops/internal/model"
	"github.com/sakif/ml-finops/internal/service"
)

// ModelHandler exposes the model registry: list, deploy, stop, restart,
// delete, and the externally-settable cost breakdown.
//
// All routes live behind RequireAuth — the registry itself is shared, the
// gate is simply "you must be signed in".
type ModelHandler struct {
	registry *service.ModelRegistry
	logger   *slog.Logger
}

// NewModelHandler creates a ModelHandler.
func NewModelHandler(registry *service.ModelRegistry, logger *slog.Logger) *ModelHandler {
	return &ModelHandler{registry: registry, logger: logger}
}

// HandleList returns all models ordered by creation time.
//
// HTTP: GET /api/models
func (h *ModelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

// HandleDeploy creates a model and starts the simulated pipeline.
//
// HTTP: POST /api/models
// BODY: {"name": "Sales Model", "type": "xgboost"}
//
// Responds 201 immediately with the model in "training" — the pipeline
// advances it in the background.
func (h *ModelHandler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string          `json:"name"`
		Type model.ModelType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	m, err := h.registry.Deploy(req.Name, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// HandleGet returns a single model.
//
// HTTP: GET /api/models/{id}
func (h *ModelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleStop stops an active model.
//
// HTTP: POST /api/models/{id}/stop
func (h *ModelHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Stop(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleRestart puts a stopped model back through the pipeline.
//
// HTTP: POST /api/models/{id}/restart
func (h *ModelHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	m, err := h.registry.Restart(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleDelete removes a model in any state.
//
// HTTP: DELETE /api/models/{id}
func (h *ModelHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetCost replaces a model's cost breakdown. The total is computed
// server-side from the three components.
//
// HTTP: PUT /api/models/{id}/cost
// BODY: {"sagemaker": 42.30, "s3": 2.87, "ses": 0.50}
func (h *ModelHandler) HandleSetCost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SageMaker float64 `json:"sagemaker"`
		S3        float64 `json:"s3"`
		SES       float64 `json:"ses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	m, err := h.registry.SetCost(chi.URLParam(r, "id"), req.SageMaker, req.S3, req.SES)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ml-finops/internal/server"
	"github.com/sakif/ml-finops/internal/service"
)

// newTestServer builds a full server on an in-memory database with
// millisecond pipeline delays. Routes are exercised through the real
// router, middleware included.
func newTestServer(t *testing.T, seedDemo bool) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s, err := server.New(server.Config{
		Port:      0,
		DBPath:    ":memory:",
		JWTSecret: "integration-test-secret-32ch!!!!",
		Delays: service.LifecycleDelays{
			Training:  20 * time.Millisecond,
			Deploying: 15 * time.Millisecond,
		},
		SeedDemo: seedDemo,
	}, logger)
	require.NoError(t, err)

	return s.Router()
}

// doJSON sends a JSON request and decodes the JSON response into out
// (out may be nil).
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if out != nil && rr.Code < 300 {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(out))
	}
	return rr
}

// signup registers a throwaway account and returns its bearer token.
func signup(t *testing.T, h http.Handler, email string) string {
	t.Helper()

	var res struct {
		Token string `json:"token"`
	}
	rr := doJSON(t, h, http.MethodPost, "/auth/signup", "",
		map[string]string{"email": email, "password": "pw123456"}, &res)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestLiveness(t *testing.T) {
	h := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "running")
}

func TestSignupAndLogin(t *testing.T) {
	h := newTestServer(t, false)

	t.Run("signup returns 201 with token and user", func(t *testing.T) {
		var res struct {
			Message string `json:"message"`
			Token   string `json:"token"`
			User    struct {
				Email string `json:"email"`
				Plan  string `json:"plan"`
			} `json:"user"`
		}
		rr := doJSON(t, h, http.MethodPost, "/auth/signup", "",
			map[string]string{"email": "new@example.com", "password": "pw123456"}, &res)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "new@example.com", res.User.Email)
		assert.Equal(t, "free", res.User.Plan)
	})

	t.Run("duplicate signup returns 400", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/auth/signup", "",
			map[string]string{"email": "new@example.com", "password": "other"}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login returns 200 with fresh token", func(t *testing.T) {
		var res struct {
			Token string `json:"token"`
		}
		rr := doJSON(t, h, http.MethodPost, "/auth/login", "",
			map[string]string{"email": "new@example.com", "password": "pw123456"}, &res)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		rr1 := doJSON(t, h, http.MethodPost, "/auth/login", "",
			map[string]string{"email": "ghost@example.com", "password": "x"}, nil)
		rr2 := doJSON(t, h, http.MethodPost, "/auth/login", "",
			map[string]string{"email": "new@example.com", "password": "wrong"}, nil)

		assert.Equal(t, http.StatusBadRequest, rr1.Code)
		assert.Equal(t, http.StatusBadRequest, rr2.Code)
		// Same status is not enough — the bodies must match byte for byte
		assert.Equal(t, rr1.Body.String(), rr2.Body.String())
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/auth/signup", "",
			map[string]string{"email": "", "password": ""}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed JSON returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":`))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	h := newTestServer(t, false)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodPut, "/api/me/plan"},
		{http.MethodGet, "/api/models"},
		{http.MethodPost, "/api/models"},
		{http.MethodGet, "/api/costs"},
		{http.MethodGet, "/api/costs/forecast"},
	}

	for _, p := range paths {
		t.Run(fmt.Sprintf("%s %s", p.method, p.path), func(t *testing.T) {
			rr := doJSON(t, h, p.method, p.path, "", nil, nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestMeAndPlan(t *testing.T) {
	h := newTestServer(t, false)
	token := signup(t, h, "me@example.com")

	t.Run("me returns the profile", func(t *testing.T) {
		var res struct {
			Email string `json:"email"`
			Plan  string `json:"plan"`
		}
		rr := doJSON(t, h, http.MethodGet, "/api/me", token, nil, &res)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "me@example.com", res.Email)
		assert.Equal(t, "free", res.Plan)
	})

	t.Run("plan upgrade persists", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPut, "/api/me/plan", token,
			map[string]string{"plan": "premium"}, nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		var res struct {
			Plan string `json:"plan"`
		}
		doJSON(t, h, http.MethodGet, "/api/me", token, nil, &res)
		assert.Equal(t, "premium", res.Plan)
	})

	t.Run("unknown plan tier returns 400", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPut, "/api/me/plan", token,
			map[string]string{"plan": "enterprise"}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestModelLifecycleOverHTTP(t *testing.T) {
	h := newTestServer(t, false)
	token := signup(t, h, "models@example.com")

	type modelRes struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		Status   string  `json:"status"`
		Endpoint string  `json:"endpoint"`
		Cost     struct{ Total float64 } `json:"cost"`
	}

	var deployed modelRes
	rr := doJSON(t, h, http.MethodPost, "/api/models", token,
		map[string]string{"name": "Fraud Detector", "type": "xgboost"}, &deployed)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "training", deployed.Status)
	assert.Empty(t, deployed.Endpoint)

	// stopping mid-training is rejected
	rr = doJSON(t, h, http.MethodPost, "/api/models/"+deployed.ID+"/stop", token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// wait for the pipeline to finish
	var got modelRes
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/models/"+deployed.ID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if json.NewDecoder(rec.Body).Decode(&got) == nil && got.Status == "active" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, "active", got.Status, "model never became active")
	assert.Equal(t,
		"https://runtime.sagemaker.us-east-1.amazonaws.com/endpoints/fraud-detector",
		got.Endpoint)

	// active → stopped
	var stopped modelRes
	rr = doJSON(t, h, http.MethodPost, "/api/models/"+deployed.ID+"/stop", token, nil, &stopped)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "stopped", stopped.Status)

	// stopped → training again
	var restarted modelRes
	rr = doJSON(t, h, http.MethodPost, "/api/models/"+deployed.ID+"/restart", token, nil, &restarted)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "training", restarted.Status)

	// set the cost breakdown; total is computed server-side
	var costed modelRes
	rr = doJSON(t, h, http.MethodPut, "/api/models/"+deployed.ID+"/cost", token,
		map[string]float64{"sagemaker": 10.00, "s3": 1.50, "ses": 0.25}, &costed)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.InDelta(t, 11.75, costed.Cost.Total, 0.001)

	// delete and confirm it is gone
	rr = doJSON(t, h, http.MethodDelete, "/api/models/"+deployed.ID, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/api/models/"+deployed.ID, token, nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeployValidation(t *testing.T) {
	h := newTestServer(t, false)
	token := signup(t, h, "validate@example.com")

	t.Run("missing name", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/models", token,
			map[string]string{"name": "", "type": "llm"}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/models", token,
			map[string]string{"name": "ok", "type": "tensorflow"}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestDemoSeed(t *testing.T) {
	h := newTestServer(t, true)
	token := signup(t, h, "demo@example.com")

	var models []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	rr := doJSON(t, h, http.MethodGet, "/api/models", token, nil, &models)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, models, 2)

	// Ordered by creation time: the sales model predates the churn one
	assert.Equal(t, "Sales Prediction Model", models[0].Name)
	assert.Equal(t, "active", models[0].Status)
	assert.Equal(t, "Customer Churn Analysis", models[1].Name)
}

func TestCostsOverHTTP(t *testing.T) {
	h := newTestServer(t, false)
	token := signup(t, h, "costs@example.com")

	t.Run("costs returns both seeded series", func(t *testing.T) {
		var res struct {
			Actual    []struct{ Total float64 } `json:"actual"`
			Predicted []struct{ Total float64 } `json:"predicted"`
		}
		rr := doJSON(t, h, http.MethodGet, "/api/costs", token, nil, &res)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, res.Actual, 7)
		assert.Len(t, res.Predicted, 5)
	})

	t.Run("forecast defaults to five days", func(t *testing.T) {
		var res []struct {
			Date  string  `json:"date"`
			Total float64 `json:"total"`
		}
		rr := doJSON(t, h, http.MethodGet, "/api/costs/forecast", token, nil, &res)
		assert.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, res, 5)
		assert.Equal(t, "2025-01-08", res[0].Date)
		// Seed spend trends upward, the projection should too
		assert.Greater(t, res[4].Total, res[0].Total)
	})

	t.Run("forecast honors days parameter", func(t *testing.T) {
		var res []struct{ Date string }
		rr := doJSON(t, h, http.MethodGet, "/api/costs/forecast?days=3", token, nil, &res)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, res, 3)
	})

	t.Run("non-integer days returns 400", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodGet, "/api/costs/forecast?days=soon", token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("oversized horizon returns 400", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodGet, "/api/costs/forecast?days=9999", token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

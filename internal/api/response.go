package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/rbd"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/recalc"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/reliability"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

var domainErrors = []error{
	rbd.ErrInvalidElement,
	rbd.ErrNotConnected,
	rbd.ErrGroupNotTraceable,
	rbd.ErrInvalidGroup,
	rbd.ErrGroupOneChainOnly,
	rbd.ErrSchemaNotTraceable,
	node.ErrNotAnElement,
	node.ErrMultipleInputs,
	node.ErrMultipleOutputs,
	reliability.ErrInvalidInputData,
	recalc.ErrCascadeTooDeep,
}

// isDomainError reports whether err is a malformed-graph or bad-input error
// rather than an infrastructure failure.
func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

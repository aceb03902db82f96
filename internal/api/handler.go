package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/config"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/engine"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/metrics"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/recalc"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/reliability"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng    *engine.Engine
	store  node.Store
	loader *config.Loader
	mux    *http.ServeMux
	evals  singleflight.Group
}

// New creates an HTTP handler and registers all routes. loader may be nil,
// in which case the config routes are not registered.
func New(eng *engine.Engine, store node.Store, loader *config.Loader) http.Handler {
	h := &Handler{eng: eng, store: store, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/edits", h.applyEdit)
	h.mux.HandleFunc("POST /v1/edits/batch", h.applyBatch)
	h.mux.HandleFunc("GET /v1/schemas/{id...}", h.schemaReliability)
	h.mux.HandleFunc("POST /v1/derive", h.derive)
	h.mux.HandleFunc("GET /v1/nodes/{id...}", h.getNode)
	h.mux.HandleFunc("PUT /v1/nodes/{id...}", h.putNode)
	if loader != nil {
		h.mux.HandleFunc("GET /v1/config", h.getConfig)
		h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	}
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/edits — synchronous edit; all targets share one operation.
func (h *Handler) applyEdit(w http.ResponseWriter, r *http.Request) {
	var ed engine.Edit
	if err := json.NewDecoder(r.Body).Decode(&ed); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if msg := prepareEdit(&ed, time.Now()); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.eng.ProcessSync(r.Context(), &ed)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if res.Err() != nil {
		writeJSON(w, statusFor(res.Err()), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/edits/batch — async batch of independent edits (up to 100).
func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	var edits []*engine.Edit
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(edits) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one edit")
		return
	}
	if len(edits) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(edits), maxBatchSize))
		return
	}

	now := time.Now()
	for i, ed := range edits {
		if ed == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("edits[%d]: null edit", i))
			return
		}
		if msg := prepareEdit(ed, now); msg != "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("edits[%d]: %s", i, msg))
			return
		}
	}

	jobID := uuid.New().String()
	queued := 0
	for _, ed := range edits {
		if h.eng.ProcessAsync(ed) {
			queued++
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(edits),
		"queued":   queued,
		"rejected": len(edits) - queued,
	})
}

func prepareEdit(ed *engine.Edit, now time.Time) string {
	if ed.ID == "" {
		ed.ID = uuid.New().String()
	}
	if ed.Kind == "" {
		ed.Kind = engine.KindPropagate
	}
	if len(ed.Targets) == 0 {
		return "edit targets are required"
	}
	ed.ReceivedAt = now
	return ""
}

// GET /v1/schemas/{id}?t= — reliability at t (default: expected life time) and MTBF.
func (h *Handler) schemaReliability(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var t *float64
	if raw := r.URL.Query().Get("t"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid t %q", raw))
			return
		}
		t = &v
	}

	key := id + "@" + r.URL.Query().Get("t")
	v, err, _ := h.evals.Do(key, func() (interface{}, error) {
		return h.eng.EvaluateSchema(r.Context(), id, t)
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v.(*recalc.Evaluation))
}

type deriveRequest struct {
	Vars     node.Variables `json:"vars"`
	Timespan *float64       `json:"timespan,omitempty"`
}

// POST /v1/derive — complete a parameter set from its authoritative input.
func (h *Handler) derive(w http.ResponseWriter, r *http.Request) {
	var req deriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	out, err := reliability.Derive(req.Vars, req.Timespan)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /v1/nodes/{id} — raw node as stored.
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// PUT /v1/nodes/{id} — raw write for seeding; links are not validated and
// nothing is recomputed (send an edit for that).
func (h *Handler) putNode(w http.ResponseWriter, r *http.Request) {
	var n node.Node
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	id := r.PathValue("id")
	if n.ID != "" && n.ID != id {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("body id %q does not match path %q", n.ID, id))
		return
	}
	n.ID = id
	if n.Role == "" {
		writeError(w, http.StatusBadRequest, "node role is required")
		return
	}
	if err := h.store.Save(r.Context(), &n); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &n)
}

// GET /v1/config — current configuration.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loader.Config())
}

// POST /v1/config/reload — re-read the config and swap reliability settings.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if errors.Is(err, config.ErrInvalid) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.eng.SwapSettings(engine.SettingsFrom(cfg.Reliability))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"reliability": cfg.Reliability,
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the edit queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
			"busy_workers":      h.eng.BusyWorkers(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
		"busy_workers":      h.eng.BusyWorkers(),
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, node.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		if isDomainError(err) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

// Package api exposes batch sending and token feedback over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-apns-pusher/internal/pipeline"
	"github.com/tinywideclouds/go-apns-pusher/pkg/apns"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

// maxBatchBytes caps a POSTed batch document.
const maxBatchBytes = 8 << 20

// BatchRunner runs one raw batch document. *apnspusher.Pusher implements it.
type BatchRunner interface {
	Run(ctx context.Context, raw []byte) (*pipeline.Report, error)
}

type PushAPI struct {
	Runner BatchRunner
	Store  dispatch.FeedbackStore
	Logger *slog.Logger
}

func NewPushAPI(runner BatchRunner, store dispatch.FeedbackStore, logger *slog.Logger) *PushAPI {
	return &PushAPI{
		Runner: runner,
		Store:  store,
		Logger: logger.With("component", "PushAPI"),
	}
}

// Router is the part of a mux the API needs.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// Register adds the API routes to mux.
func (api *PushAPI) Register(mux Router) {
	mux.Handle("POST /batches", http.HandlerFunc(api.SendBatch))
	mux.Handle("GET /feedback/{token}", http.HandlerFunc(api.GetFeedback))
	mux.Handle("DELETE /feedback/{token}", http.HandlerFunc(api.ClearFeedback))
}

// SendBatch runs the posted batch document and answers with the report.
func (api *PushAPI) SendBatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		response.WriteJSONError(w, http.StatusRequestEntityTooLarge, "batch too large")
		return
	}

	report, err := api.Runner.Run(r.Context(), raw)
	if err != nil {
		var noH2 *apns.NoHttp2SupportError
		switch {
		case errors.Is(err, pipeline.ErrInvalidBatch):
			response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &noH2):
			api.Logger.Error("SendBatch: transport unusable", "err", err)
			response.WriteJSONError(w, http.StatusBadGateway, "apns transport unavailable")
		default:
			api.Logger.Error("SendBatch: failed", "err", err)
			response.WriteJSONError(w, http.StatusInternalServerError, "batch failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type feedbackResponse struct {
	Token   string `json:"token"`
	Invalid bool   `json:"invalid"`
}

func (api *PushAPI) GetFeedback(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	invalid, err := api.Store.IsInvalid(r.Context(), token)
	if err != nil {
		api.Logger.Error("GetFeedback: lookup failed", "token", token, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Token: token, Invalid: invalid})
}

// ClearFeedback forgets a token's invalid mark, e.g. after the app re-registered it.
func (api *PushAPI) ClearFeedback(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if err := api.Store.Clear(r.Context(), token); err != nil {
		api.Logger.Warn("ClearFeedback: failed", "token", token, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	api.Logger.Info("ClearFeedback: token cleared", "token", token)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

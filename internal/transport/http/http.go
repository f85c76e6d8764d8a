// Package http implements the HTTP job intake transport for carvoice.
//
// Dispatchers that cannot reach NATS submit room jobs here. The API is
// documented with Swagger annotations and served under /swagger/.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/carvoice/internal/docs"
	"github.com/nadzzz/carvoice/internal/message"
	"github.com/nadzzz/carvoice/internal/transport"
)

// maxBodyBytes bounds a dispatch request body.
const maxBodyBytes = 1 << 20

// DispatchRequest asks carvoice to run an assistant session in a room.
type DispatchRequest struct {
	// ID is the job id. Generated when empty.
	ID string `json:"id,omitempty" example:"6f1c2b9e-0d4a-4d1f-9a57-3c8f0e2b7d11"`

	// Room is the name of the room to join.
	Room string `json:"room" example:"car-42"`

	// Metadata is the dispatch metadata, either as a JSON object or as a
	// JSON-encoded string.
	Metadata json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler returns the HTTP routes served by the transport.
func (t *Transport) Handler(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	// POST /v1/dispatch starts a session for a room job.
	mux.HandleFunc("POST /v1/dispatch", func(w http.ResponseWriter, r *http.Request) {
		t.handleDispatch(w, r, handler)
	})

	// Swagger UI serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}

// Listen starts the HTTP server and routes incoming jobs to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleDispatch processes a POST /v1/dispatch request.
//
// @Summary     Start an assistant session
// @Description Joins the assistant to a room. The metadata selects realtime or hybrid mode,
// @Description the voice, the LLM and the enabled tools; malformed metadata falls back to defaults.
// @Tags        dispatch
// @Accept      json
// @Produce     json
// @Param       job  body      DispatchRequest      true  "Room job"
// @Success     200  {object}  message.StartResult  "Session started"
// @Failure     400  {string}  string               "Invalid request body"
// @Failure     500  {string}  string               "Session failed to start"
// @Router      /v1/dispatch [post]
func (t *Transport) handleDispatch(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req DispatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	job := message.Job{
		ID:         req.ID,
		Room:       req.Room,
		Metadata:   message.MetadataFromJSON(req.Metadata),
		ReceivedAt: time.Now(),
	}
	if err := job.ValidateID(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Sessions outlive the request that created them.
	result, err := handler(context.WithoutCancel(r.Context()), job)
	if err != nil {
		slog.Error("dispatch failed", "room", req.Room, "error", err)
		http.Error(w, "dispatch error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

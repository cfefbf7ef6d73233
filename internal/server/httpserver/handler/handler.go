package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/thingvault/internal/protocol"
)

// APIPrefix is the path prefix of every storage command.
const APIPrefix = "/api/storage/"

// DefaultBodyLimit caps request bodies when Options.BodyLimit is zero.
const DefaultBodyLimit = 16 << 20

// StorageService executes storage commands. *service.Manager implements it.
type StorageService interface {
	NewClient(ctx context.Context, ownerID string) *protocol.Response
	RegisterApp(ctx context.Context, repositoryID, body string) *protocol.Response
	OpenStorage(ctx context.Context, appToken, storageID string) *protocol.Response
	StoreThing(ctx context.Context, storageToken, thingID, body string) *protocol.Response
	ThingExists(ctx context.Context, storageToken, thingID string) *protocol.Response
	GetThingModifiedOn(ctx context.Context, storageToken, thingID string) *protocol.Response
	GetThingCopy(ctx context.Context, storageToken, thingID string) *protocol.Response
	DiscardThing(ctx context.Context, storageToken, thingID string) *protocol.Response
	FindThingIDs(ctx context.Context, storageToken, pattern string) *protocol.Response
}

// Options configures a Handler.
type Options struct {
	// AdminToken guards newclient. Empty leaves it open.
	AdminToken string
	// BodyLimit caps request bodies in bytes.
	BodyLimit int64
	// Ready reports whether the service can take traffic.
	Ready  func(context.Context) error
	Logger *slog.Logger
}

// Handler routes storage commands to a StorageService.
type Handler struct {
	svc        StorageService
	adminToken string
	bodyLimit  int64
	ready      func(context.Context) error
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New creates a Handler.
func New(svc StorageService, opts Options) *Handler {
	h := &Handler{
		svc:        svc,
		adminToken: opts.AdminToken,
		bodyLimit:  opts.BodyLimit,
		ready:      opts.Ready,
		logger:     opts.Logger,
		mux:        http.NewServeMux(),
	}
	if h.bodyLimit <= 0 {
		h.bodyLimit = DefaultBodyLimit
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET "+APIPrefix+protocol.CmdNewClient, h.handleNewClient)
	h.mux.HandleFunc("POST "+APIPrefix+protocol.CmdRegisterApp+"/{repositoryID}", h.handleRegisterApp)
	h.mux.HandleFunc("GET "+APIPrefix+protocol.CmdOpen+"/{args...}", h.handleOpen)
	h.mux.HandleFunc("PUT "+APIPrefix+protocol.CmdStore+"/{args...}", h.handleStore)
	h.mux.HandleFunc("GET "+APIPrefix+protocol.CmdExists+"/{args...}", h.thingCommand(h.svc.ThingExists))
	h.mux.HandleFunc("GET "+APIPrefix+protocol.CmdGetModifiedOn+"/{args...}", h.thingCommand(h.svc.GetThingModifiedOn))
	h.mux.HandleFunc("GET "+APIPrefix+protocol.CmdGetACopy+"/{args...}", h.thingCommand(h.svc.GetThingCopy))
	h.mux.HandleFunc("DELETE "+APIPrefix+protocol.CmdDiscard+"/{args...}", h.thingCommand(h.svc.DiscardThing))
	h.mux.HandleFunc("GET "+APIPrefix+protocol.CmdFindIDs+"/{args...}", h.thingCommand(h.svc.FindThingIDs))
}

// writeEnvelope writes the obfuscated response envelope.
func (h *Handler) writeEnvelope(w http.ResponseWriter, resp *protocol.Response) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, resp.Encode()); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// readBody reads the request body within the configured limit. It writes
// the error response itself and reports false on failure.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.bodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return "", false
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return "", false
	}
	return strings.TrimSpace(string(body)), true
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

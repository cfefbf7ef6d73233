package handler

import (
	"context"
	"net/http"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
	"github.com/yndnr/thingvault/pkg/token"
)

// OwnerParam is the query parameter naming the owner of a new repository.
const OwnerParam = "owner"

func (h *Handler) handleNewClient(w http.ResponseWriter, r *http.Request) {
	if h.adminToken != "" && !token.Equal(bearerToken(r), h.adminToken) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="thingvault"`)
		http.Error(w, "admin token required", http.StatusUnauthorized)
		return
	}
	h.writeEnvelope(w, h.svc.NewClient(r.Context(), r.URL.Query().Get(OwnerParam)))
}

func (h *Handler) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.writeEnvelope(w, h.svc.RegisterApp(r.Context(), r.PathValue("repositoryID"), body))
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	args, err := protocol.SplitArgs(r.PathValue("args"), 2)
	if err != nil {
		h.writeEnvelope(w, protocol.FromError(err, domain.KindOpenStorageFailed))
		return
	}
	h.writeEnvelope(w, h.svc.OpenStorage(r.Context(), args[0], args[1]))
}

func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request) {
	args, err := protocol.SplitArgs(r.PathValue("args"), 2)
	if err != nil {
		h.writeEnvelope(w, protocol.FromError(err, domain.KindThingOperationFailed))
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.writeEnvelope(w, h.svc.StoreThing(r.Context(), args[0], args[1], body))
}

// thingCommand adapts a "{storageToken},{argument}" command.
func (h *Handler) thingCommand(fn func(ctx context.Context, storageToken, arg string) *protocol.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := protocol.SplitArgs(r.PathValue("args"), 2)
		if err != nil {
			h.writeEnvelope(w, protocol.FromError(err, domain.KindThingOperationFailed))
			return
		}
		h.writeEnvelope(w, fn(r.Context(), args[0], args[1]))
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"debatelive/internal/domain"
	"debatelive/internal/middleware"
	"debatelive/internal/service"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"
)

// DebateHandler exposes the sync engine's debate state over HTTP
type DebateHandler struct {
	sync service.DebateSyncService
	log  *logger.Logger
}

func NewDebateHandler(sync service.DebateSyncService, log *logger.Logger) *DebateHandler {
	return &DebateHandler{
		sync: sync,
		log:  log,
	}
}

// RegisterRoutes mounts the debate endpoints. Reads are public; writes go
// through the supplied session middleware.
func (h *DebateHandler) RegisterRoutes(r chi.Router, requireSession func(http.Handler) http.Handler) {
	r.Route("/debates", func(r chi.Router) {
		r.Get("/", h.ListDebates)
		r.Route("/{debateID}", func(r chi.Router) {
			r.Get("/", h.GetDebate)
			r.Get("/votes", h.GetVotes)
			r.Get("/arguments", h.ListArguments)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)

				r.Post("/vote/{side}", h.SubmitVote)
				r.Post("/finish", h.FinishDebate)
				r.Post("/arguments", h.PostArgument)
			})
		})
	})
	r.Get("/users/{userID}", h.GetUser)

	// Sync-engine control endpoints for the hosting page
	r.Route("/client", func(r chi.Router) {
		r.Get("/state", h.GetSyncState)
		r.Post("/refresh", h.Refresh)
		r.Post("/visibility", h.SetVisibility)
	})
}

// ListDebates handles GET /api/debates
func (h *DebateHandler) ListDebates(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"debates": h.sync.Debates(),
	})
}

// GetDebate handles GET /api/debates/{debateID}
func (h *DebateHandler) GetDebate(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")

	view, ok := h.sync.Debate(debateID)
	if !ok {
		h.respondError(w, r, apperrors.NewNotFoundError("Debate not found"))
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// GetVotes handles GET /api/debates/{debateID}/votes
func (h *DebateHandler) GetVotes(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")

	view, ok := h.sync.Debate(debateID)
	if !ok {
		h.respondError(w, r, apperrors.NewNotFoundError("Debate not found"))
		return
	}
	h.respondJSON(w, http.StatusOK, view.Votes)
}

// SubmitVote handles POST /api/debates/{debateID}/vote/{side}
func (h *DebateHandler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")

	side, err := domain.ParseVoteSide(chi.URLParam(r, "side"))
	if err != nil {
		h.respondError(w, r, apperrors.NewValidationError("Vote side must be user1 or user2", nil))
		return
	}

	state, err := h.sync.Vote(r.Context(), debateID, side)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, state)
}

// FinishDebate handles POST /api/debates/{debateID}/finish
func (h *DebateHandler) FinishDebate(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")
	userID := middleware.UserIDFromContext(r.Context())

	if err := h.sync.EndDebate(r.Context(), debateID, userID); err != nil {
		h.respondError(w, r, err)
		return
	}

	view, ok := h.sync.Debate(debateID)
	if !ok {
		h.respondError(w, r, apperrors.NewNotFoundError("Debate not found"))
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

// ListArguments handles GET /api/debates/{debateID}/arguments
func (h *DebateHandler) ListArguments(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")

	args, err := h.sync.Arguments(r.Context(), debateID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"arguments": args,
	})
}

// PostArgumentRequest is the body for POST /api/debates/{debateID}/arguments
type PostArgumentRequest struct {
	Text string `json:"text"`
}

// PostArgument handles POST /api/debates/{debateID}/arguments
func (h *DebateHandler) PostArgument(w http.ResponseWriter, r *http.Request) {
	debateID := chi.URLParam(r, "debateID")

	var req PostArgumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	arg, err := h.sync.PostArgument(r.Context(), debateID, req.Text)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, arg)
}

// GetUser handles GET /api/users/{userID}. The response may be a fallback
// profile while the real one resolves in the background.
func (h *DebateHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user := h.sync.User(userID)
	if user == nil {
		user = domain.FallbackUser(userID)
	}
	h.respondJSON(w, http.StatusOK, user)
}

// GetSyncState handles GET /api/client/state
func (h *DebateHandler) GetSyncState(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.sync.SyncState())
}

// Refresh handles POST /api/client/refresh. The force query parameter
// bypasses the debounce floor.
func (h *DebateHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	if err := h.sync.Refresh(r.Context(), force); err != nil {
		h.respondError(w, r, apperrors.NewRateLimitError(err.Error()))
		return
	}
	h.respondJSON(w, http.StatusOK, h.sync.SyncState())
}

// SetVisibilityRequest is the body for POST /api/client/visibility
type SetVisibilityRequest struct {
	Visible bool `json:"visible"`
}

// SetVisibility handles POST /api/client/visibility
func (h *DebateHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req SetVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, apperrors.NewValidationError("Invalid request body", nil))
		return
	}

	h.sync.SetVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DebateHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *DebateHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewUnknownError("Internal server error", err)
	}

	h.log.WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"request_id": middleware.RequestIDFromContext(r.Context()),
	}).WithError(appErr).Error("Request failed")

	response := &apperrors.ErrorResponse{}
	response.Error.Type = appErr.Type
	response.Error.Message = appErr.Message
	response.Error.Details = appErr.Details
	response.Error.RequestID = middleware.RequestIDFromContext(r.Context())
	response.Error.Timestamp = time.Now().UTC().Format(time.RFC3339)

	h.respondJSON(w, appErr.StatusCode, response)
}

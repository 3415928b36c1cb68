package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/EoCiMrEo/TikTacToeArena/internal/engine"
	"github.com/EoCiMrEo/TikTacToeArena/internal/obslog"
	"github.com/EoCiMrEo/TikTacToeArena/internal/records"
	"github.com/EoCiMrEo/TikTacToeArena/pkg/gamedto"
)

const maxBodyBytes = 64 << 10

type handlers struct {
	svc Service
}

func (h *handlers) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Ping(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *handlers) create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamedto.CreateGameRequest
		if !decode(w, r, &req) {
			return
		}
		rec, err := h.svc.Create(r.Context(), engine.CreateRequest{
			PlayerA:  req.PlayerA,
			PlayerB:  req.PlayerB,
			Settings: req.Settings,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (h *handlers) get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := h.svc.Get(r.Context(), chi.URLParam(r, "game_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *handlers) move() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamedto.MoveRequest
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.PlayerID) == "" || req.Position == nil {
			WriteHTTPError(w, http.StatusBadRequest, gamedto.CodeInvalidArgument)
			return
		}
		rec, err := h.svc.SubmitMove(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID, *req.Position)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *handlers) join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamedto.JoinRequest
		if !decode(w, r, &req) {
			return
		}
		rec, err := h.svc.Join(r.Context(), chi.URLParam(r, "game_id"), req.PlayerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (h *handlers) active() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.svc.ActiveByUser(r.Context(), chi.URLParam(r, "user_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (h *handlers) recent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := records.DefaultRecentLimit
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				WriteHTTPError(w, http.StatusBadRequest, gamedto.CodeInvalidArgument)
				return
			}
			limit = n
		}
		list, err := h.svc.Recent(r.Context(), chi.URLParam(r, "user_id"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, gamedto.CodeInvalidArgument)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, gamedto.ErrorResponse{Error: code})
}

func writeError(w http.ResponseWriter, err error) {
	var de gamedto.DomainError
	if !errors.As(err, &de) {
		obslog.L().Error("http_internal_error", zap.Error(err))
		WriteHTTPError(w, http.StatusInternalServerError, gamedto.CodeInternal)
		return
	}
	writeJSON(w, StatusFor(de.Code), gamedto.ErrorResponse{Error: de.Code, Message: de.Message, Retryable: de.Retryable})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case gamedto.CodeNotFound:
		return http.StatusNotFound
	case gamedto.CodeBadPosition, gamedto.CodeInvalidArgument:
		return http.StatusBadRequest
	case gamedto.CodeNotActive, gamedto.CodeNotYourTurn, gamedto.CodeCellTaken, gamedto.CodeNotWaiting:
		return http.StatusConflict
	case gamedto.CodeStoreUnavailable, gamedto.CodeConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/export"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, h.sessionStore.List())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and /api/sessions/{id}/images/{n}
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	sessionID := parts[0]

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	if len(parts) == 3 && parts[1] == "images" {
		h.handleImageDownload(w, r, session, parts[2])
		return
	}
	if len(parts) != 1 {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case "GET":
		h.writeJSON(w, session)
	case "DELETE":
		h.sessionStore.Delete(sessionID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleImageDownload(w http.ResponseWriter, r *http.Request, session *models.GenerationSession, index string) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := strconv.Atoi(index)
	if err != nil || session.Result == nil || n < 0 || n >= len(session.Result.Images) {
		h.writeError(w, "Image not found", http.StatusNotFound)
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := export.Encode(session.Result.Images[n].Pixels, format)
	if err != nil {
		h.writeError(w, "Failed to encode image: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if r.URL.Query().Get("download") != "0" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename("generated_image", n, format)))
	}
	_, _ = w.Write(data)
}

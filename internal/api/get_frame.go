package api

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

// GetFrameHandler отдаёт сохранённый JPEG кадра по frame_id
func (h *Handlers) GetFrameHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	frameID := vars["frame_id"]

	path, err := h.db.FramePath(r.Context(), frameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if path == "" {
		writeError(w, http.StatusNotFound, "frame not found")
		return
	}

	data, err := h.frames.GetFrame(r.Context(), path)
	if err != nil {
		log.Printf("GetFrame: failed to fetch %s: %v", path, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch frame")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

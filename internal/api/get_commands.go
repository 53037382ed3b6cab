package api

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const defaultCommandLimit = 50

// GetCommandsHandler обработчик истории команд для операторского интерфейса
func (h *Handlers) GetCommandsHandler(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")

	limit := defaultCommandLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.db.RecentCommands(r.Context(), deviceID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch command history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

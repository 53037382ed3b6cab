package api

import (
	"encoding/json"
	"net/http"
)

// GetDevicesHandler обработчик для получения статусов edge-устройств
func (h *Handlers) GetDevicesHandler(w http.ResponseWriter, r *http.Request) {
	devices, err := h.db.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch devices")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

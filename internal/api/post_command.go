package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/adrve/cloud-analytics/internal/models"
)

// CommandRequest тело POST /command от операторского интерфейса
type CommandRequest struct {
	DeviceID string         `json:"deviceId"`
	Command  string         `json:"command"`
	Reason   string         `json:"reason,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// PostCommandHandler публикует ручную команду оператора в топик устройства,
// минуя детекцию. Логируется и сохраняется так же, как автоматические команды
func (h *Handlers) PostCommandHandler(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	action := models.CommandAction(req.Command)
	if action != models.CommandStop && action != models.CommandResume {
		writeError(w, http.StatusBadRequest, "command must be stop or resume")
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual operator command"
	}

	cmd := models.Command{
		Command:   action,
		Reason:    reason,
		Timestamp: time.Now().Unix(),
		Params:    req.Params,
	}

	topic, err := h.publisher.Publish(r.Context(), req.DeviceID, cmd, models.OriginManual)
	if err != nil {
		log.Printf("PostCommand: publish failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to publish command")
		return
	}

	log.Printf("PostCommand: %s command sent to %s by operator", action, topic)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "command published",
		"topic":   topic,
	})
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/samber/lo"
)

const defaultWindow = time.Hour

// DetectionsResponse ответ read API
type DetectionsResponse struct {
	Detections []models.Detection `json:"detections"`
	Count      int                `json:"count"`
	StartTime  int64              `json:"startTime"`
	EndTime    int64              `json:"endTime"`
}

// GetDetectionsHandler обработчик для получения детекций за окно времени
// (start_time/end_time в epoch-секундах, по умолчанию последний час)
func (h *Handlers) GetDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	end := time.Now().Unix()
	start := end - int64(defaultWindow.Seconds())

	if v := r.URL.Query().Get("end_time"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_time must be epoch seconds")
			return
		}
		end = parsed
		start = end - int64(defaultWindow.Seconds())
	}
	if v := r.URL.Query().Get("start_time"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_time must be epoch seconds")
			return
		}
		start = parsed
	}

	records, err := h.db.DetectionsInWindow(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch detections")
		return
	}

	detections := lo.Map(records, func(rec models.DetectionRecord, _ int) models.Detection {
		return rec.Detection
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DetectionsResponse{
		Detections: detections,
		Count:      len(detections),
		StartTime:  start,
		EndTime:    end,
	})
}

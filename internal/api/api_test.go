package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/gorilla/mux"
)

type fakeStore struct {
	records    []models.DetectionRecord
	gotStart   int64
	gotEnd     int64
	commands   []models.CommandRecord
	devices    []models.Device
	framePaths map[string]string
}

func (f *fakeStore) DetectionsInWindow(ctx context.Context, start, end int64) ([]models.DetectionRecord, error) {
	f.gotStart, f.gotEnd = start, end
	var out []models.DetectionRecord
	for _, rec := range f.records {
		if rec.Timestamp >= start && rec.Timestamp <= end {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) RecentCommands(ctx context.Context, deviceID string, limit int) ([]models.CommandRecord, error) {
	return f.commands, nil
}

func (f *fakeStore) ListDevices(ctx context.Context) ([]models.Device, error) {
	return f.devices, nil
}

func (f *fakeStore) FramePath(ctx context.Context, frameID string) (string, error) {
	return f.framePaths[frameID], nil
}

type fakeFrames struct {
	frames map[string][]byte
}

func (f *fakeFrames) GetFrame(ctx context.Context, key string) ([]byte, error) {
	return f.frames[key], nil
}

type fakePublisher struct {
	published []models.Command
	devices   []string
	origins   []models.CommandOrigin
}

func (f *fakePublisher) Publish(ctx context.Context, deviceID string, cmd models.Command, origin models.CommandOrigin) (string, error) {
	f.published = append(f.published, cmd)
	f.devices = append(f.devices, deviceID)
	f.origins = append(f.origins, origin)
	return "adrve.commands." + deviceID, nil
}

func newRouter(store *fakeStore, frames *fakeFrames, pub *fakePublisher) *mux.Router {
	h := NewHandlers(store, frames, pub)
	r := mux.NewRouter()
	r.HandleFunc("/detections", h.GetDetectionsHandler).Methods("GET")
	r.HandleFunc("/command", h.PostCommandHandler).Methods("POST")
	r.HandleFunc("/commands", h.GetCommandsHandler).Methods("GET")
	r.HandleFunc("/devices", h.GetDevicesHandler).Methods("GET")
	r.HandleFunc("/frames/{frame_id}", h.GetFrameHandler).Methods("GET")
	return r
}

func TestGetDetectionsWindowInclusive(t *testing.T) {
	store := &fakeStore{records: []models.DetectionRecord{
		{FrameID: "f1", Timestamp: 100, Detection: models.Detection{Class: "person", Confidence: 0.92, Box: []float64{10, 10, 50, 120}, Source: models.SourceCloud}},
		{FrameID: "f2", Timestamp: 200, Detection: models.Detection{Class: "car", Confidence: 0.5, Box: []float64{1, 2, 3, 4}, Source: models.SourceCloud}},
		{FrameID: "f3", Timestamp: 201, Detection: models.Detection{Class: "dog", Confidence: 0.8, Box: []float64{1, 2, 3, 4}, Source: models.SourceEdge}},
	}}
	r := newRouter(store, &fakeFrames{}, &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/detections?start_time=100&end_time=200", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if store.gotStart != 100 || store.gotEnd != 200 {
		t.Fatalf("window must pass through as-is, got [%d, %d]", store.gotStart, store.gotEnd)
	}

	var resp DetectionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Count != 2 || len(resp.Detections) != 2 {
		t.Fatalf("expected 2 detections in [100,200], got %d", resp.Count)
	}
	if resp.StartTime != 100 || resp.EndTime != 200 {
		t.Fatalf("response must echo the window, got [%d, %d]", resp.StartTime, resp.EndTime)
	}

	// Round-trip: поля детекции возвращаются дословно
	det := resp.Detections[0]
	if det.Class != "person" || det.Confidence != 0.92 || det.Source != models.SourceCloud {
		t.Fatalf("detection fields must round-trip verbatim: %+v", det)
	}
	if len(det.Box) != 4 || det.Box[0] != 10 || det.Box[3] != 120 {
		t.Fatalf("box must round-trip verbatim: %v", det.Box)
	}
}

func TestGetDetectionsDefaultWindow(t *testing.T) {
	store := &fakeStore{}
	r := newRouter(store, &fakeFrames{}, &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/detections", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if store.gotEnd-store.gotStart != 3600 {
		t.Fatalf("default window must be one hour, got %d seconds", store.gotEnd-store.gotStart)
	}

	var resp DetectionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("expected empty result, got %d", resp.Count)
	}
}

func TestGetDetectionsBadParams(t *testing.T) {
	r := newRouter(&fakeStore{}, &fakeFrames{}, &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/detections?start_time=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad start_time, got %d", w.Code)
	}
}

func TestPostCommandSuccess(t *testing.T) {
	pub := &fakePublisher{}
	r := newRouter(&fakeStore{}, &fakeFrames{}, pub)

	body := `{"deviceId":"robot-1","command":"stop","reason":"operator emergency stop"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/command", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["topic"] != "adrve.commands.robot-1" {
		t.Fatalf("unexpected topic %q", resp["topic"])
	}
	if resp["message"] == "" {
		t.Fatal("response must carry a message")
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected one published command, got %d", len(pub.published))
	}
	if pub.published[0].Command != models.CommandStop {
		t.Fatalf("unexpected command %s", pub.published[0].Command)
	}
	if pub.origins[0] != models.OriginManual {
		t.Fatalf("operator commands must be marked manual, got %s", pub.origins[0])
	}
}

func TestPostCommandValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing deviceId", `{"command":"stop"}`},
		{"missing command", `{"deviceId":"robot-1"}`},
		{"unknown command", `{"deviceId":"robot-1","command":"launch"}`},
		{"not json", `hello`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &fakePublisher{}
			r := newRouter(&fakeStore{}, &fakeFrames{}, pub)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", "/command", strings.NewReader(tc.body)))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}

			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("error body must be JSON: %v", err)
			}
			if resp["error"] == "" {
				t.Fatal("error body must carry an error message")
			}
			if len(pub.published) != 0 {
				t.Fatalf("invalid request must not publish, got %d", len(pub.published))
			}
		})
	}
}

func TestGetFrame(t *testing.T) {
	store := &fakeStore{framePaths: map[string]string{"f1": "frames/2023/11/14/22/1700000000_f1.jpg"}}
	frames := &fakeFrames{frames: map[string][]byte{"frames/2023/11/14/22/1700000000_f1.jpg": []byte("jpeg-bytes")}}
	r := newRouter(store, frames, &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/frames/f1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Fatal("frame bytes must pass through unchanged")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/frames/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown frame, got %d", w.Code)
	}
}

func TestGetCommandsBadLimit(t *testing.T) {
	r := newRouter(&fakeStore{}, &fakeFrames{}, &fakePublisher{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/commands?limit=-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative limit, got %d", w.Code)
	}
}

package processor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adrve/cloud-analytics/internal/decision"
	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/adrve/cloud-analytics/internal/observability"
	"github.com/adrve/cloud-analytics/internal/services/inference"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeMedia struct {
	existsAfter int // FragmentExists возвращает true начиная с этой попытки
	calls       int
	fragment    []byte
	fragmentErr error
	frames      map[string][]byte
	uploadErr   error
}

func (f *fakeMedia) FragmentExists(ctx context.Context, streamName, fragmentNumber string) (bool, error) {
	f.calls++
	return f.calls > f.existsAfter, nil
}

func (f *fakeMedia) GetFragment(ctx context.Context, streamName, fragmentNumber string) ([]byte, error) {
	if f.fragmentErr != nil {
		return nil, f.fragmentErr
	}
	return f.fragment, nil
}

func (f *fakeMedia) UploadFrame(ctx context.Context, key string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	if f.frames == nil {
		f.frames = make(map[string][]byte)
	}
	f.frames[key] = data
	return nil
}

type fakeDetector struct {
	result inference.Result
	err    error
}

func (f *fakeDetector) DetectObjects(ctx context.Context, frameJPEG []byte) (inference.Result, error) {
	return f.result, f.err
}

type fakeStore struct {
	records []models.DetectionRecord
	err     error
}

func (f *fakeStore) InsertDetections(ctx context.Context, records []models.DetectionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

type published struct {
	deviceID string
	cmd      models.Command
	origin   models.CommandOrigin
}

type fakePublisher struct {
	published []published
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, deviceID string, cmd models.Command, origin models.CommandOrigin) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, published{deviceID: deviceID, cmd: cmd, origin: origin})
	return "adrve.commands." + deviceID, nil
}

func newTestProcessor(media *fakeMedia, det *fakeDetector, store *fakeStore, pub *fakePublisher) (*Processor, *observability.Metrics) {
	m := observability.New()
	decider := decision.New([]string{"person"}, 0.7)
	p := New(media, det, store, decider, pub, 7*24*time.Hour, m)
	p.streamPoll.Sleep = func(time.Duration) {}
	p.extract = func(fragment []byte) ([]byte, error) { return []byte("jpeg:" + string(fragment)), nil }
	p.now = func() time.Time { return time.Unix(1700000000, 0) }
	return p, m
}

var testInvocation = models.ExtractionInvocation{
	StreamName:     "adrve-video-stream",
	FragmentNumber: "91343852333212752275675982790612275766161739294",
	DeviceID:       "robot-1",
}

func TestProcessPersistsAndPublishesStop(t *testing.T) {
	media := &fakeMedia{fragment: []byte("media")}
	det := &fakeDetector{result: inference.Result{Objects: []models.Detection{
		{Class: "person", Confidence: 0.92, Box: []float64{10, 10, 50, 120}, Source: models.SourceCloud},
		{Class: "car", Confidence: 0.99, Box: []float64{0, 0, 5, 5}, Source: models.SourceCloud},
	}}}
	store := &fakeStore{}
	pub := &fakePublisher{}
	p, m := newTestProcessor(media, det, store, pub)

	if err := p.Process(context.Background(), testInvocation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.records) != 2 {
		t.Fatalf("expected 2 persisted detections, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.FrameID == "" {
		t.Fatal("record must carry a frame id")
	}
	if rec.Timestamp != 1700000000 {
		t.Fatalf("unexpected timestamp %d", rec.Timestamp)
	}
	if rec.TTL != 1700000000+7*24*60*60 {
		t.Fatalf("unexpected ttl %d", rec.TTL)
	}
	if rec.Detection.Class != "person" || rec.Detection.Confidence != 0.92 {
		t.Fatalf("detection fields must persist verbatim: %+v", rec.Detection)
	}
	if store.records[1].Seq != 1 {
		t.Fatalf("second detection must get seq 1, got %d", store.records[1].Seq)
	}

	if len(media.frames) != 1 {
		t.Fatalf("expected one stored frame, got %d", len(media.frames))
	}
	for key := range media.frames {
		if !strings.HasPrefix(key, "frames/") || !strings.HasSuffix(key, ".jpg") {
			t.Fatalf("unexpected frame key %q", key)
		}
	}

	if len(pub.published) != 1 {
		t.Fatalf("expected exactly one stop command, got %d", len(pub.published))
	}
	sent := pub.published[0]
	if sent.deviceID != "robot-1" || sent.cmd.Command != models.CommandStop || sent.origin != models.OriginAuto {
		t.Fatalf("unexpected command: %+v", sent)
	}

	if got := testutil.ToFloat64(m.FramesProcessed); got != 1 {
		t.Fatalf("expected frames counter 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.CommandsPublished); got != 1 {
		t.Fatalf("expected commands counter 1, got %f", got)
	}
}

func TestProcessNoCommandWithoutCriticalDetections(t *testing.T) {
	media := &fakeMedia{fragment: []byte("media")}
	det := &fakeDetector{result: inference.Result{Objects: []models.Detection{
		{Class: "car", Confidence: 0.99, Box: []float64{0, 0, 5, 5}, Source: models.SourceCloud},
	}}}
	pub := &fakePublisher{}
	p, _ := newTestProcessor(media, det, &fakeStore{}, pub)

	if err := p.Process(context.Background(), testInvocation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected zero commands, got %d", len(pub.published))
	}
}

func TestProcessWaitsForFragment(t *testing.T) {
	media := &fakeMedia{fragment: []byte("media"), existsAfter: 3}
	p, _ := newTestProcessor(media, &fakeDetector{}, &fakeStore{}, &fakePublisher{})

	if err := p.Process(context.Background(), testInvocation); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if media.calls != 4 {
		t.Fatalf("expected 4 availability probes, got %d", media.calls)
	}
}

func TestProcessProceedsAfterPollExhaustion(t *testing.T) {
	// Фрагмент так и не подтвердился — обрабатываем всё равно
	media := &fakeMedia{fragment: []byte("media"), existsAfter: 100}
	store := &fakeStore{}
	det := &fakeDetector{result: inference.Result{Objects: []models.Detection{
		{Class: "person", Confidence: 0.9, Box: []float64{1, 2, 3, 4}, Source: models.SourceCloud},
	}}}
	p, _ := newTestProcessor(media, det, store, &fakePublisher{})

	if err := p.Process(context.Background(), testInvocation); err != nil {
		t.Fatalf("poll exhaustion must not fail processing: %v", err)
	}
	if media.calls != streamPollAttempts {
		t.Fatalf("expected %d probes, got %d", streamPollAttempts, media.calls)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected detections persisted after exhaustion, got %d", len(store.records))
	}
}

func TestProcessMediaFailureIsStructured(t *testing.T) {
	media := &fakeMedia{fragmentErr: errors.New("media unavailable")}
	pub := &fakePublisher{}
	store := &fakeStore{}
	p, _ := newTestProcessor(media, &fakeDetector{}, store, pub)

	if err := p.Process(context.Background(), testInvocation); err == nil {
		t.Fatal("media failure must produce an error result")
	}
	if len(store.records) != 0 || len(pub.published) != 0 {
		t.Fatal("failed invocation must not persist or publish")
	}
}

func TestProcessInferenceErrorDegrades(t *testing.T) {
	media := &fakeMedia{fragment: []byte("media")}
	det := &fakeDetector{err: errors.New("model overloaded")}
	store := &fakeStore{}
	pub := &fakePublisher{}
	p, m := newTestProcessor(media, det, store, pub)

	if err := p.Process(context.Background(), testInvocation); err != nil {
		t.Fatalf("inference error must not fail the invocation: %v", err)
	}
	if len(store.records) != 0 {
		t.Fatalf("no detections to persist, got %d", len(store.records))
	}
	if len(pub.published) != 0 {
		t.Fatalf("degraded result must not publish commands, got %d", len(pub.published))
	}
	if len(media.frames) != 1 {
		t.Fatal("frame must still be stored for the operator")
	}
	if got := testutil.ToFloat64(m.InferenceDegraded); got != 1 {
		t.Fatalf("expected degraded counter 1, got %f", got)
	}
}

package download

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipgram/clipgram/internal/model"
	"github.com/clipgram/clipgram/internal/queue"
	"github.com/clipgram/clipgram/internal/stats"
)

// fakeFetcher writes a canned payload to the output path, or fails.
type fakeFetcher struct {
	mu       sync.Mutex
	payload  []byte
	err      error
	samples  []Progress
	panics   int // panic on the first N calls
	calls    int
	lastURL  string
	lastPath string
	paths    []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, maxHeight int, outputPath string, progressFn func(Progress)) error {
	f.mu.Lock()
	f.calls++
	f.lastURL = url
	f.lastPath = outputPath
	f.paths = append(f.paths, outputPath)
	shouldPanic := f.calls <= f.panics
	f.mu.Unlock()

	if shouldPanic {
		panic("fetcher blew up")
	}
	for _, s := range f.samples {
		progressFn(s)
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, f.payload, 0644)
}

// fakeNotifier records the transport traffic.
type fakeNotifier struct {
	mu       sync.Mutex
	nextID   int
	sent     []string
	edits    []string
	deleted  []int
	videos   []string
	actions  int
	sendErr  error
	editErr  error
	videoErr error
}

func (n *fakeNotifier) SendText(chatID int64, text string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return 0, n.sendErr
	}
	n.nextID++
	n.sent = append(n.sent, text)
	return n.nextID, nil
}

func (n *fakeNotifier) EditText(chatID int64, messageID int, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.editErr != nil {
		return n.editErr
	}
	n.edits = append(n.edits, text)
	return nil
}

func (n *fakeNotifier) DeleteMessage(chatID int64, messageID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, messageID)
}

func (n *fakeNotifier) SendUploadAction(chatID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions++
}

func (n *fakeNotifier) SendVideoFile(chatID int64, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.videoErr != nil {
		return n.videoErr
	}
	n.videos = append(n.videos, path)
	return nil
}

func (f *fakeFetcher) lastSeen() (url, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastURL, f.lastPath
}

func (n *fakeNotifier) videoCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.videos)
}

func (n *fakeNotifier) deletedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.deleted)
}

func (n *fakeNotifier) lastEdit() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.edits) == 0 {
		return ""
	}
	return n.edits[len(n.edits)-1]
}

// newTestPool builds a single-worker pool with fast pacing and an outcome
// channel to synchronize on.
func newTestPool(t *testing.T, fetcher Fetcher, notifier Notifier, maxBytes int64) (*Pool, *queue.Queue, chan model.Outcome, string) {
	t.Helper()
	dir := t.TempDir()
	q := queue.New()
	p := NewPool(q, fetcher, notifier, dir, maxBytes, 1)
	p.progressInterval = time.Millisecond
	p.uploadStepDelay = time.Millisecond

	outcomes := make(chan model.Outcome, 16)
	p.SetOutcomeCallback(func(_ model.Job, o model.Outcome) {
		outcomes <- o
	})
	return p, q, outcomes, dir
}

func waitOutcome(t *testing.T, outcomes chan model.Outcome) model.Outcome {
	t.Helper()
	select {
	case o := <-outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for job outcome")
		return ""
	}
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	return len(entries)
}

func TestPool_DeliversJob(t *testing.T) {
	fetcher := &fakeFetcher{payload: bytes.Repeat([]byte("v"), 128)}
	notifier := &fakeNotifier{}
	p, q, outcomes, dir := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/a", Height: 720})

	if o := waitOutcome(t, outcomes); o != model.OutcomeDelivered {
		t.Fatalf("Expected Delivered, got %s", o)
	}
	if notifier.videoCount() != 1 {
		t.Errorf("Expected exactly 1 video send, got %d", notifier.videoCount())
	}
	if dirEntries(t, dir) != 0 {
		t.Error("Expected temp file to be removed after delivery")
	}
	if url, _ := fetcher.lastSeen(); url != "https://fb.watch/a" {
		t.Errorf("Expected fetcher to receive submitted URL, got %s", url)
	}
}

func TestPool_SizeGate(t *testing.T) {
	fetcher := &fakeFetcher{payload: bytes.Repeat([]byte("v"), 2048)}
	notifier := &fakeNotifier{}
	p, q, outcomes, dir := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/big", Height: 1080})

	if o := waitOutcome(t, outcomes); o != model.OutcomeTooLarge {
		t.Fatalf("Expected TooLarge, got %s", o)
	}
	if notifier.videoCount() != 0 {
		t.Error("Expected no upload attempt for oversized file")
	}
	if dirEntries(t, dir) != 0 {
		t.Error("Expected oversized temp file to be removed")
	}
	if !strings.Contains(notifier.lastEdit(), "limit") {
		t.Errorf("Expected size notice, got %q", notifier.lastEdit())
	}
	if notifier.deletedCount() != 0 {
		t.Error("Expected the size notice to stay visible, but the status message was deleted")
	}
}

func TestPool_DownloadFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("network unreachable")}
	notifier := &fakeNotifier{}
	p, q, outcomes, dir := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/x", Height: 720})

	if o := waitOutcome(t, outcomes); o != model.OutcomeFailed {
		t.Fatalf("Expected Failed, got %s", o)
	}
	if notifier.videoCount() != 0 {
		t.Error("Expected no upload after download failure")
	}
	if !strings.Contains(notifier.lastEdit(), "network unreachable") {
		t.Errorf("Expected failure notice with cause, got %q", notifier.lastEdit())
	}
	if notifier.deletedCount() != 0 {
		t.Error("Expected the failure notice to stay visible, but the status message was deleted")
	}
	if dirEntries(t, dir) != 0 {
		t.Error("Expected no leftover files")
	}
}

func TestPool_UploadFailure(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("ok")}
	notifier := &fakeNotifier{videoErr: errors.New("bad gateway")}
	p, q, outcomes, dir := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/x", Height: 720})

	if o := waitOutcome(t, outcomes); o != model.OutcomeFailed {
		t.Fatalf("Expected Failed, got %s", o)
	}
	if dirEntries(t, dir) != 0 {
		t.Error("Expected temp file removed after upload failure")
	}
}

func TestPool_NotificationFailuresDoNotFailJob(t *testing.T) {
	fetcher := &fakeFetcher{
		payload: []byte("ok"),
		samples: []Progress{{DownloadedBytes: 1, TotalBytes: 2, Started: time.Now()}},
	}
	notifier := &fakeNotifier{
		sendErr: errors.New("blocked by user"),
		editErr: errors.New("message not found"),
	}
	p, q, outcomes, _ := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/x", Height: 720})

	// The status channel is completely broken, but the primary job outcome
	// takes precedence over secondary notification failures.
	if o := waitOutcome(t, outcomes); o != model.OutcomeDelivered {
		t.Fatalf("Expected Delivered despite notification failures, got %s", o)
	}
}

func TestPool_WorkerSurvivesPanic(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("ok"), panics: 1}
	notifier := &fakeNotifier{}
	p, q, _, _ := newTestPool(t, fetcher, notifier, 1024)

	type result struct {
		job     model.Job
		outcome model.Outcome
	}
	results := make(chan result, 4)
	p.SetOutcomeCallback(func(j model.Job, o model.Outcome) {
		results <- result{j, o}
	})

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/boom", Height: 720})
	q.Enqueue(model.Job{ChatID: 2, URL: "https://fb.watch/fine", Height: 720})

	wait := func() result {
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for job outcome")
			return result{}
		}
	}

	// The panicking job still reports a terminal outcome for its own chat,
	// so anything keyed on the chat (like the busy guard) is released.
	first := wait()
	if first.job.ChatID != 1 || first.outcome != model.OutcomeFailed {
		t.Fatalf("Expected chat 1 to fail after panic, got chat %d %s", first.job.ChatID, first.outcome)
	}

	// The worker survives and delivers the next job.
	second := wait()
	if second.job.ChatID != 2 || second.outcome != model.OutcomeDelivered {
		t.Fatalf("Expected chat 2 Delivered, got chat %d %s", second.job.ChatID, second.outcome)
	}
	if notifier.videoCount() != 1 {
		t.Errorf("Expected 1 delivery, got %d", notifier.videoCount())
	}
}

func TestPool_ProgressReachesTransport(t *testing.T) {
	started := time.Now().Add(-2 * time.Second)
	fetcher := &fakeFetcher{
		payload: []byte("ok"),
		samples: []Progress{
			{DownloadedBytes: 500, TotalBytes: 1000, Started: started},
		},
	}
	notifier := &fakeNotifier{}
	p, q, outcomes, _ := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 1, URL: "https://fb.watch/x", Height: 720})
	waitOutcome(t, outcomes)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	found := false
	for _, e := range notifier.edits {
		if strings.Contains(e, "50.0%") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Expected a 50%% progress edit, got %v", notifier.edits)
	}
}

func TestPool_StopDiscardsPending(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("ok")}
	notifier := &fakeNotifier{}
	p, q, _, _ := newTestPool(t, fetcher, notifier, 1024)

	// Never started: everything enqueued stays pending and is dropped.
	q.Enqueue(model.Job{ChatID: 1})
	q.Enqueue(model.Job{ChatID: 2})
	p.Start()
	p.Stop()

	if notifier.videoCount() > 2 {
		t.Errorf("Expected at most the in-flight jobs to finish, got %d", notifier.videoCount())
	}
}

func TestPool_EndToEndWithStats(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("video-bytes")}
	notifier := &fakeNotifier{}
	p, q, outcomes, dir := newTestPool(t, fetcher, notifier, 1024)

	agg := stats.NewAggregator()

	p.Start()
	defer p.Stop()

	// The user picked 720 from a resolved [1080 720] offer; the selection
	// handler records the request and enqueues exactly one job.
	agg.Record(7, "alice")
	q.Enqueue(model.Job{ChatID: 7, UserID: 7, URL: "https://www.tiktok.com/@u/video/1", Height: 720})

	if o := waitOutcome(t, outcomes); o != model.OutcomeDelivered {
		t.Fatalf("Expected Delivered, got %s", o)
	}
	if notifier.videoCount() != 1 {
		t.Errorf("Expected exactly one delivery, got %d", notifier.videoCount())
	}
	if dirEntries(t, dir) != 0 {
		t.Error("Expected temp file removed")
	}

	r := agg.Snapshot()
	if r.TotalRequests != 1 {
		t.Errorf("Expected request count 1, got %d", r.TotalRequests)
	}
}

func TestDeriveStats(t *testing.T) {
	started := time.Now().Add(-10 * time.Second)
	percent, speed, eta := deriveStats(Progress{
		DownloadedBytes: 1000,
		TotalBytes:      4000,
		Started:         started,
	})

	if percent != 25 {
		t.Errorf("Expected 25%%, got %v", percent)
	}
	if speed <= 0 {
		t.Errorf("Expected positive speed, got %v", speed)
	}
	if eta <= 0 {
		t.Errorf("Expected positive ETA, got %v", eta)
	}

	// Unknown total: percent and ETA stay zero.
	percent, _, eta = deriveStats(Progress{DownloadedBytes: 1000, Started: started})
	if percent != 0 || eta != 0 {
		t.Errorf("Expected zero percent/ETA for unknown total, got %v/%v", percent, eta)
	}
}

func TestFormatFilter(t *testing.T) {
	got := formatFilter(720)
	want := "bestvideo[height<=720]+bestaudio/best[height<=720]"
	if got != want {
		t.Errorf("formatFilter(720) = %q, expected %q", got, want)
	}
}

func TestJobFilePathsDoNotCollide(t *testing.T) {
	// Two jobs for the same chat processed in rapid succession must not
	// share a file.
	fetcher := &fakeFetcher{payload: []byte("ok")}
	notifier := &fakeNotifier{}
	p, q, outcomes, _ := newTestPool(t, fetcher, notifier, 1024)

	p.Start()
	defer p.Stop()

	q.Enqueue(model.Job{ChatID: 5, URL: "https://fb.watch/1", Height: 480})
	q.Enqueue(model.Job{ChatID: 5, URL: "https://fb.watch/2", Height: 480})

	waitOutcome(t, outcomes)
	waitOutcome(t, outcomes)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	if len(fetcher.paths) != 2 {
		t.Fatalf("Expected 2 fetches, got %d", len(fetcher.paths))
	}
	if fetcher.paths[0] == fetcher.paths[1] {
		t.Errorf("Expected distinct temp paths, got %s twice", fetcher.paths[0])
	}
	if filepath.Dir(fetcher.paths[0]) != filepath.Dir(fetcher.paths[1]) {
		t.Error("Expected both paths in the pool download dir")
	}
}

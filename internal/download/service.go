package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/clipgram/clipgram/internal/model"
	"github.com/clipgram/clipgram/internal/platform"
	"github.com/clipgram/clipgram/internal/progress"
	"github.com/clipgram/clipgram/internal/queue"
)

// User-visible pipeline messages
const (
	MsgDownloading    = "📥 Starting download..."
	MsgUploadStarting = "⏫ Uploading...\n" // followed by an empty bar
	MsgTooLargeFmt    = "⚠️ The video is %.1f MB, which is over the %d MB limit. Try a lower quality."
	MsgDownloadErrFmt = "⚠️ Download failed: %v"
	MsgUploadErrFmt   = "⚠️ Upload failed: %v"
)

// Pool is a fixed set of workers consuming the job queue. Workers never
// terminate on job failure: every error is converted to a user notification
// and the worker moves on to the next dequeue.
type Pool struct {
	queue        *queue.Queue
	fetcher      Fetcher
	notifier     Notifier
	downloadDir  string
	maxFileBytes int64
	workers      int

	// progress pacing, overridable in tests
	progressInterval time.Duration
	uploadStepDelay  time.Duration

	onOutcome func(model.Job, model.Outcome) // callback for observers
	wg        sync.WaitGroup
}

// NewPool creates a pool of the given size. Start must be called before jobs
// are processed.
func NewPool(q *queue.Queue, fetcher Fetcher, notifier Notifier, downloadDir string, maxFileBytes int64, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:            q,
		fetcher:          fetcher,
		notifier:         notifier,
		downloadDir:      downloadDir,
		maxFileBytes:     maxFileBytes,
		workers:          workers,
		progressInterval: progress.DefaultMinInterval,
		uploadStepDelay:  progress.UploadAnimationStepDelay,
	}
}

// SetOutcomeCallback registers a callback invoked after each job reaches its
// terminal outcome.
func (p *Pool) SetOutcomeCallback(callback func(model.Job, model.Outcome)) {
	p.onOutcome = callback
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Pending jobs
// are discarded; queued work does not survive shutdown.
func (p *Pool) Stop() {
	p.queue.Close()
	p.wg.Wait()
}

// worker is the unbounded dequeue loop. Each iteration is supervised
// separately so a panic anywhere in dispatch or job logic is contained and
// the worker keeps serving.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for p.runNext(id) {
	}
	log.Printf("worker %d: queue closed, exiting", id)
}

// runNext processes one job. It reports alive=false only when the queue has
// been closed; a recovered panic leaves the worker alive.
func (p *Pool) runNext(id int) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker %d: recovered from panic: %v", id, r)
			alive = true
		}
	}()

	job, ok := p.queue.Dequeue()
	if !ok {
		return false
	}

	// Observers hear a terminal outcome for every dequeued job, even when
	// the pipeline panics; the recover above then keeps the worker alive.
	outcome := model.OutcomeFailed
	defer func() {
		log.Printf("worker %d: job for chat %d finished: %s", id, job.ChatID, outcome)
		if p.onOutcome != nil {
			p.onOutcome(job, outcome)
		}
	}()

	outcome = p.runJob(job)
	return true
}

// runJob executes the pipeline for one job: download, size gate, upload,
// cleanup. The stages run strictly in sequence and the temp file is removed
// on every exit path.
func (p *Pool) runJob(job model.Job) (outcome model.Outcome) {
	outputPath := platform.JobFilePath(p.downloadDir, job.ChatID)
	defer func() {
		if err := platform.Remove(outputPath); err != nil {
			log.Printf("cleanup failed for %s: %v", outputPath, err)
		}
	}()

	statusID, err := p.notifier.SendText(job.ChatID, MsgDownloading)
	if err != nil {
		log.Printf("status message dropped for chat %d: %v", job.ChatID, err)
		statusID = 0
	}
	defer func() { p.deleteStatus(job.ChatID, statusID) }()

	reporter := progress.NewReporter(func(text string) error {
		if statusID == 0 {
			return nil
		}
		return p.notifier.EditText(job.ChatID, statusID, text)
	}, p.progressInterval, progress.DefaultTotalBlocks)
	reporter.SetUploadStepDelay(p.uploadStepDelay)

	// Stage 1: download. The transfer blocks this worker for its full
	// duration; a slow job only stalls its own worker.
	err = p.fetcher.Fetch(context.Background(), job.URL, job.Height, outputPath, func(pr Progress) {
		percent, speed, eta := deriveStats(pr)
		reporter.Report(progress.LabelDownloading, percent, speed, eta)
	})
	if err != nil {
		log.Printf("download failed for chat %d (%s): %v", job.ChatID, job.URL, err)
		p.editStatus(job.ChatID, statusID, fmt.Sprintf(MsgDownloadErrFmt, err))
		statusID = 0 // keep the error visible
		return model.OutcomeFailed
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		log.Printf("downloaded file missing for chat %d: %v", job.ChatID, err)
		p.editStatus(job.ChatID, statusID, fmt.Sprintf(MsgDownloadErrFmt, err))
		statusID = 0 // keep the error visible
		return model.OutcomeFailed
	}

	// Stage 2: size gate. Oversized files are rejected before any upload
	// attempt; the deferred cleanup still removes them.
	if info.Size() > p.maxFileBytes {
		sizeMB := float64(info.Size()) / 1024 / 1024
		p.editStatus(job.ChatID, statusID, fmt.Sprintf(MsgTooLargeFmt, sizeMB, p.maxFileBytes/1024/1024))
		statusID = 0 // keep the size notice visible
		return model.OutcomeTooLarge
	}

	// Stage 3: upload. The transport gives no byte-level feedback, so the bar
	// walks fixed steps for visual continuity.
	p.editStatus(job.ChatID, statusID, MsgUploadStarting+progress.RenderBar(0, progress.DefaultTotalBlocks))
	reporter.AnimateUpload()

	p.notifier.SendUploadAction(job.ChatID)
	if err := p.notifier.SendVideoFile(job.ChatID, outputPath); err != nil {
		log.Printf("upload failed for chat %d: %v", job.ChatID, err)
		p.editStatus(job.ChatID, statusID, fmt.Sprintf(MsgUploadErrFmt, err))
		statusID = 0 // keep the error visible
		return model.OutcomeFailed
	}

	return model.OutcomeDelivered
}

// editStatus edits the status message, swallowing transport failures.
func (p *Pool) editStatus(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	if err := p.notifier.EditText(chatID, messageID, text); err != nil {
		log.Printf("status edit dropped for chat %d: %v", chatID, err)
	}
}

// deleteStatus removes the transient status message, if it still exists.
func (p *Pool) deleteStatus(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	p.notifier.DeleteMessage(chatID, messageID)
}

// deriveStats converts one raw progress sample into percent, speed and ETA.
func deriveStats(pr Progress) (percent float64, bytesPerSec float64, etaSec int) {
	if pr.TotalBytes > 0 {
		percent = float64(pr.DownloadedBytes) / float64(pr.TotalBytes) * 100
	}
	if !pr.Started.IsZero() {
		if elapsed := time.Since(pr.Started).Seconds(); elapsed > 0 {
			bytesPerSec = float64(pr.DownloadedBytes) / elapsed
		}
	}
	if bytesPerSec > 0 && pr.TotalBytes > pr.DownloadedBytes {
		etaSec = int(float64(pr.TotalBytes-pr.DownloadedBytes) / bytesPerSec)
	}
	return percent, bytesPerSec, etaSec
}

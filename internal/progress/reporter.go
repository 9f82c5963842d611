package progress

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Bar rendering constants
const (
	FilledBlock = "🟩"
	EmptyBlock  = "⬜️"

	DefaultTotalBlocks = 12
	DefaultMinInterval = time.Second

	// Upload animation pacing
	UploadAnimationStepDelay = 500 * time.Millisecond
)

// Status labels
const (
	LabelDownloading = "📥 Downloading..."
	LabelUploading   = "⏫ Uploading..."
)

// RenderBar renders a progress bar for percent in [0,100]. Filled blocks are
// floor(percent/100*totalBlocks), so every percent value inside the same
// quantization step renders identically and the bar never flickers.
func RenderBar(percent float64, totalBlocks int) string {
	if totalBlocks <= 0 {
		totalBlocks = DefaultTotalBlocks
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(totalBlocks))
	if filled > totalBlocks {
		filled = totalBlocks
	}
	return strings.Repeat(FilledBlock, filled) + strings.Repeat(EmptyBlock, totalBlocks-filled)
}

// FormatSpeed renders a transfer rate in KB/s, or "N/A" when unknown.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f KB/s", bytesPerSec/1024)
}

// FormatETA returns the remaining time as mm:ss (or hh:mm:ss above an hour),
// or "—" if unknown.
func FormatETA(etaSec int) string {
	if etaSec <= 0 {
		return "—"
	}

	hours := etaSec / 3600
	minutes := (etaSec % 3600) / 60
	seconds := etaSec % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// StatusText composes one status message: label, bar, percent, speed and ETA.
func StatusText(label string, percent float64, totalBlocks int, bytesPerSec float64, etaSec int) string {
	return fmt.Sprintf("%s\n%s %.1f%%\n⚡️ Speed: %s\n⏳ ETA: %s",
		label, RenderBar(percent, totalBlocks), percent, FormatSpeed(bytesPerSec), FormatETA(etaSec))
}

// Reporter converts raw byte-progress callbacks into throttled status edits.
// Edit failures are logged and discarded: a lost cosmetic update must never
// disturb the pipeline.
type Reporter struct {
	mu          sync.Mutex
	edit        func(text string) error
	minInterval time.Duration
	totalBlocks int
	stepDelay   time.Duration
	lastUpdate  time.Time
}

// NewReporter creates a reporter that pushes status text through edit at most
// once per minInterval.
func NewReporter(edit func(text string) error, minInterval time.Duration, totalBlocks int) *Reporter {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if totalBlocks <= 0 {
		totalBlocks = DefaultTotalBlocks
	}
	return &Reporter{
		edit:        edit,
		minInterval: minInterval,
		totalBlocks: totalBlocks,
		stepDelay:   UploadAnimationStepDelay,
	}
}

// SetUploadStepDelay overrides the upload animation pacing.
func (r *Reporter) SetUploadStepDelay(d time.Duration) {
	if d > 0 {
		r.stepDelay = d
	}
}

// Report emits one throttled status update. Calls arriving inside the
// throttling interval are dropped.
func (r *Reporter) Report(label string, percent float64, bytesPerSec float64, etaSec int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastUpdate) < r.minInterval {
		return
	}

	if err := r.edit(StatusText(label, percent, r.totalBlocks, bytesPerSec, etaSec)); err != nil {
		log.Printf("progress: status edit dropped: %v", err)
		return
	}
	r.lastUpdate = now
}

// AnimateUpload walks the bar from empty to full in fixed steps. The upload
// itself gives no byte-level feedback, so the animation is purely cosmetic;
// edit failures are swallowed like any other status update.
func (r *Reporter) AnimateUpload() {
	for i := 1; i <= r.totalBlocks; i++ {
		percent := float64(i) / float64(r.totalBlocks) * 100
		bar := strings.Repeat(FilledBlock, i) + strings.Repeat(EmptyBlock, r.totalBlocks-i)
		text := fmt.Sprintf("%s\n%s %.1f%%", LabelUploading, bar, percent)
		if err := r.edit(text); err != nil {
			log.Printf("progress: upload animation edit dropped: %v", err)
		}
		time.Sleep(r.stepDelay)
	}
}

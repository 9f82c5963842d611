package download

import (
	"context"
	"time"
)

// Progress carries one raw byte-progress sample from the extraction engine.
type Progress struct {
	DownloadedBytes int64
	TotalBytes      int64 // 0 when the engine does not know the total
	Started         time.Time
}

// Fetcher downloads a URL into outputPath, capped at maxHeight pixels and
// normalized to a single mp4 container. It invokes progress at the engine's
// own callback frequency; throttling is the caller's concern.
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxHeight int, outputPath string, progress func(Progress)) error
}

// Notifier is the transport surface the pipeline needs. Every method is
// best-effort from the pipeline's point of view: a failed notification is
// logged and swallowed, never escalated into the job's control flow.
type Notifier interface {
	SendText(chatID int64, text string) (messageID int, err error)
	EditText(chatID int64, messageID int, text string) error
	DeleteMessage(chatID int64, messageID int)
	SendUploadAction(chatID int64)
	SendVideoFile(chatID int64, path string) error
}

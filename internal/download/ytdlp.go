package download

import (
	"context"
	"fmt"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// Engine callback pacing; the progress.Reporter throttles further.
const (
	ProgressPollInterval = 500 * time.Millisecond
)

// YTDLPFetcher downloads media through yt-dlp, filtered to the selected
// height and merged into a single mp4 container.
type YTDLPFetcher struct{}

// NewYTDLPFetcher creates the production fetcher.
func NewYTDLPFetcher() YTDLPFetcher {
	return YTDLPFetcher{}
}

// Fetch runs one download. The format filter requests the best streams not
// exceeding maxHeight, falling back to the best single stream under the cap.
func (YTDLPFetcher) Fetch(ctx context.Context, url string, maxHeight int, outputPath string, progressFn func(Progress)) error {
	dl := ytdlp.New().
		Format(formatFilter(maxHeight)).
		MergeOutputFormat("mp4").
		ForceOverwrites().
		NoPlaylist().
		Output(outputPath)

	dl.ProgressFunc(ProgressPollInterval, func(update ytdlp.ProgressUpdate) {
		progressFn(Progress{
			DownloadedBytes: int64(update.DownloadedBytes),
			TotalBytes:      int64(update.TotalBytes),
			Started:         update.Started,
		})
	})

	if _, err := dl.Run(ctx, url); err != nil {
		return fmt.Errorf("yt-dlp download failed: %w", err)
	}
	return nil
}

// formatFilter builds the yt-dlp format expression for a height cap.
func formatFilter(maxHeight int) string {
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", maxHeight, maxHeight)
}

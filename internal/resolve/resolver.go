package resolve

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/clipgram/clipgram/internal/model"
)

// Height bounds rejecting corrupt and audio-only entries
const (
	MinHeight = 100
	MaxHeight = 2160
)

// Offer limits
const (
	MaxOptions = 4
)

// Timeout constants
const (
	DefaultProbeTimeout = 60 * time.Second
)

// rawFormat is one format entry as returned by a metadata probe, before
// deduplication and filtering.
type rawFormat struct {
	Height   int
	FormatID string
	Filesize int64
}

// prober fetches the raw format list for a URL. The production implementation
// shells out to yt-dlp; tests substitute a canned one.
type prober interface {
	probe(ctx context.Context, url string) ([]rawFormat, error)
}

// Resolver turns a submitted URL into the ordered list of quality options
// offered to the user. Probe failures never surface as errors: the caller
// treats an empty result as "no formats available".
type Resolver struct {
	prober  prober
	timeout time.Duration
}

// NewResolver creates a resolver backed by yt-dlp.
func NewResolver() *Resolver {
	return &Resolver{
		prober:  ytdlpProber{},
		timeout: DefaultProbeTimeout,
	}
}

// Resolve returns the deduplicated, height-sorted quality options for url,
// or nil when probing fails or nothing usable was found. A single failed
// probe is terminal for this invocation; there are no retries.
func (r *Resolver) Resolve(ctx context.Context, url string) []model.FormatOption {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.prober.probe(ctx, url)
	if err != nil {
		log.Printf("resolve: probe failed for %s: %v", url, err)
		return nil
	}

	return selectOptions(raw)
}

// selectOptions applies the offer policy: drop heights outside
// [MinHeight,MaxHeight], keep the first-seen format per height, sort
// descending by height and truncate to MaxOptions.
func selectOptions(raw []rawFormat) []model.FormatOption {
	seen := make(map[int]bool)
	var options []model.FormatOption

	for _, f := range raw {
		if f.Height < MinHeight || f.Height > MaxHeight {
			continue
		}
		if seen[f.Height] {
			continue
		}
		seen[f.Height] = true
		options = append(options, model.FormatOption{
			Height:   f.Height,
			FormatID: f.FormatID,
			Filesize: f.Filesize,
		})
	}

	sort.Slice(options, func(i, j int) bool {
		return options[i].Height > options[j].Height
	})

	if len(options) > MaxOptions {
		options = options[:MaxOptions]
	}
	return options
}

// ytdlpProber probes metadata through yt-dlp without downloading anything.
type ytdlpProber struct{}

func (ytdlpProber) probe(ctx context.Context, url string) ([]rawFormat, error) {
	dl := ytdlp.New().
		SkipDownload().
		NoPlaylist().
		DumpSingleJSON()

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, err
	}

	infos, err := result.GetExtractedInfo()
	if err != nil {
		return nil, err
	}

	var raw []rawFormat
	for _, info := range infos {
		if info == nil {
			continue
		}
		for _, f := range info.Formats {
			if f == nil || f.Height == nil {
				continue
			}
			rf := rawFormat{Height: int(*f.Height)}
			if f.FormatID != nil {
				rf.FormatID = *f.FormatID
			}
			if f.FileSize != nil {
				rf.Filesize = int64(*f.FileSize)
			} else if f.FileSizeApprox != nil {
				rf.Filesize = int64(*f.FileSizeApprox)
			}
			raw = append(raw, rf)
		}
	}
	return raw, nil
}

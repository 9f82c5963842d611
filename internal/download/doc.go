package download

// Package download implements the core delivery pipeline built on top of
// yt-dlp (via github.com/lrstanley/go-ytdlp). A fixed pool of workers drains
// the job queue and runs download, size gate, upload and cleanup strictly in
// sequence per job, reporting throttled progress to the chat.

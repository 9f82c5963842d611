package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/lrstanley/go-ytdlp"

	"github.com/clipgram/clipgram/internal/bot"
	"github.com/clipgram/clipgram/internal/config"
	"github.com/clipgram/clipgram/internal/download"
	"github.com/clipgram/clipgram/internal/platform"
	"github.com/clipgram/clipgram/internal/queue"
	"github.com/clipgram/clipgram/internal/ratelimit"
	"github.com/clipgram/clipgram/internal/resolve"
	"github.com/clipgram/clipgram/internal/session"
	"github.com/clipgram/clipgram/internal/stats"
)

func main() {
	// A .env file is optional; real environment variables win either way.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	if err := platform.EnsureDir(cfg.DownloadDir); err != nil {
		log.Fatalf("download dir: %v", err)
	}

	// Fetches a yt-dlp binary if none is on PATH.
	ytdlp.MustInstall(context.Background(), nil)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	log.Printf("authorized as @%s", api.Self.UserName)

	jobs := queue.New()
	aggregator := stats.NewAggregator()
	inflight := session.NewInFlight()

	b := bot.New(api, cfg, bot.Deps{
		Resolver: resolve.NewResolver(),
		Sessions: session.NewStore(),
		InFlight: inflight,
		Limiter:  ratelimit.NewLimiter(cfg.RatePerMinute, cfg.RateWindow),
		Stats:    aggregator,
		Queue:    jobs,
	})

	pool := download.NewPool(jobs, download.NewYTDLPFetcher(), b, cfg.DownloadDir, cfg.MaxFileBytes, cfg.Workers)
	pool.SetOutcomeCallback(b.OnJobOutcome)
	pool.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b.Run(ctx)

	log.Println("shutting down, draining workers")
	pool.Stop()
}

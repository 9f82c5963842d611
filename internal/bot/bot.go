package bot

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/clipgram/clipgram/internal/config"
	"github.com/clipgram/clipgram/internal/model"
	"github.com/clipgram/clipgram/internal/queue"
	"github.com/clipgram/clipgram/internal/ratelimit"
	"github.com/clipgram/clipgram/internal/session"
	"github.com/clipgram/clipgram/internal/stats"
)

// Resolver probes a URL and returns the quality tiers to offer, or nil when
// the link cannot be read.
type Resolver interface {
	Resolve(ctx context.Context, url string) []model.FormatOption
}

// Deps are the collaborators the bot dispatches into. All of them are
// required.
type Deps struct {
	Resolver Resolver
	Sessions *session.Store
	InFlight *session.InFlight
	Limiter  *ratelimit.Limiter
	Stats    *stats.Aggregator
	Queue    *queue.Queue
}

// Bot owns the Telegram update loop and routes messages and callback
// queries into the rest of the application.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg config.Settings

	// api call seams, overridable in tests
	send    func(c tgbotapi.Chattable) (tgbotapi.Message, error)
	request func(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)

	resolver Resolver
	sessions *session.Store
	inflight *session.InFlight
	limiter  *ratelimit.Limiter
	stats    *stats.Aggregator
	queue    *queue.Queue
}

// New creates a Bot around an authorized API client.
func New(api *tgbotapi.BotAPI, cfg config.Settings, deps Deps) *Bot {
	return &Bot{
		api:      api,
		cfg:      cfg,
		send:     api.Send,
		request:  api.Request,
		resolver: deps.Resolver,
		sessions: deps.Sessions,
		inflight: deps.InFlight,
		limiter:  deps.Limiter,
		stats:    deps.Stats,
		queue:    deps.Queue,
	}
}

// Run consumes updates until ctx is cancelled. Each link is analyzed in its
// own goroutine so a slow probe never stalls the update loop.
func (b *Bot) Run(ctx context.Context) {
	log.Printf("bot: listening as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollTimeout
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.Message != nil:
			b.handleMessage(update.Message)
		case update.CallbackQuery != nil:
			b.handleCallback(update.CallbackQuery)
		}
	}
}

// OnJobOutcome frees the chat's processing slot once its job reaches a
// terminal state. Wire it to the worker pool's outcome callback.
func (b *Bot) OnJobOutcome(job model.Job, outcome model.Outcome) {
	b.inflight.Release(job.ChatID)
}

func (b *Bot) handleMessage(m *tgbotapi.Message) {
	if m.From == nil || m.Chat == nil {
		return
	}

	if m.IsCommand() {
		switch m.Command() {
		case "start":
			b.handleStart(m)
		case "stats":
			b.handleStatsCommand(m)
		default:
			b.sendText(m.Chat.ID, MsgUnsupported)
		}
		return
	}

	b.handleLink(m)
}

func (b *Bot) handleStart(m *tgbotapi.Message) {
	b.stats.MarkActive(m.From.ID)
	if missing := b.missingChannels(m.From.ID); len(missing) > 0 {
		b.sendJoinPrompt(m.Chat.ID, missing)
		return
	}
	b.sendText(m.Chat.ID, MsgWelcome)
}

func (b *Bot) handleStatsCommand(m *tgbotapi.Message) {
	if m.From.ID != b.cfg.AdminUserID {
		b.sendText(m.Chat.ID, MsgNotAdmin)
		return
	}
	b.sendText(m.Chat.ID, renderStatsReport(b.stats.Snapshot(), time.Now()))
}

// handleLink runs the intake gauntlet for a free-text message: supported
// domain, channel membership, rate limit, single in-flight request. Only
// then does the probe start.
func (b *Bot) handleLink(m *tgbotapi.Message) {
	chatID := m.Chat.ID
	userID := m.From.ID
	link := strings.TrimSpace(m.Text)

	if !IsSupportedLink(link, config.SupportedDomains) {
		b.sendText(chatID, MsgUnsupported)
		return
	}

	if missing := b.missingChannels(userID); len(missing) > 0 {
		b.sendJoinPrompt(chatID, missing)
		return
	}

	if !b.limiter.Allow(userID, time.Now()) {
		b.sendText(chatID, MsgRateLimited)
		return
	}

	if !b.inflight.TryAcquire(chatID) {
		b.sendText(chatID, MsgBusy)
		return
	}

	go b.analyzeLink(chatID, link)
}

// analyzeLink probes the URL, stores the session and offers the quality
// keyboard. The in-flight slot only covers the probe itself and is free
// before the keyboard goes out, so even an instant button tap can claim it;
// the slot is taken again on selection and held until that job finishes.
func (b *Bot) analyzeLink(chatID int64, link string) {
	formats := b.probeLink(chatID, link)
	if len(formats) == 0 {
		b.sendText(chatID, MsgAnalyzeFailed)
		return
	}

	b.sessions.Put(chatID, model.Session{URL: link, Formats: formats})

	msg := tgbotapi.NewMessage(chatID, MsgChooseQuality)
	msg.ReplyMarkup = qualityKeyboard(formats)
	if _, err := b.send(msg); err != nil {
		log.Printf("bot: quality keyboard dropped for chat %d: %v", chatID, err)
		b.sessions.Delete(chatID)
	}
}

// probeLink resolves the URL while showing the analyze animation. It holds
// the chat's in-flight slot for the duration of the probe.
func (b *Bot) probeLink(chatID int64, link string) []model.FormatOption {
	defer b.inflight.Release(chatID)

	statusID, err := b.SendText(chatID, analyzeFrames[0])
	if err != nil {
		log.Printf("bot: analyze status dropped for chat %d: %v", chatID, err)
	}

	done := make(chan struct{})
	if statusID != 0 {
		go b.animateAnalyze(chatID, statusID, done)
	}

	formats := b.resolver.Resolve(context.Background(), link)
	close(done)

	b.DeleteMessage(chatID, statusID)
	return formats
}

// animateAnalyze cycles the probe status text until done is closed.
func (b *Bot) animateAnalyze(chatID int64, messageID int, done <-chan struct{}) {
	ticker := time.NewTicker(analyzeFrameDelay)
	defer ticker.Stop()

	frame := 1
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := b.EditText(chatID, messageID, analyzeFrames[frame%len(analyzeFrames)]); err != nil {
				return
			}
			frame++
		}
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	height, ok := parseQualityCallback(cb.Data)
	if !ok {
		b.answerCallback(cb.ID, "")
		return
	}

	sess, ok := b.sessions.Get(chatID)
	if !ok {
		b.answerCallback(cb.ID, MsgSessionExpired)
		return
	}
	opt, ok := sess.FormatForHeight(height)
	if !ok {
		b.answerCallback(cb.ID, MsgSessionExpired)
		return
	}

	// Held until the job's terminal outcome, see OnJobOutcome.
	if !b.inflight.TryAcquire(chatID) {
		b.answerCallback(cb.ID, MsgBusy)
		return
	}

	b.stats.Record(cb.From.ID, displayName(cb.From))
	b.sessions.Delete(chatID)
	b.DeleteMessage(chatID, cb.Message.MessageID)

	b.queue.Enqueue(model.Job{
		ChatID:     chatID,
		UserID:     cb.From.ID,
		URL:        sess.URL,
		Height:     opt.Height,
		EnqueuedAt: time.Now(),
	})
	b.answerCallback(cb.ID, CallbackQueued)
}

// missingChannels returns the required channels the user has not joined.
// A membership lookup that errors counts as joined, so an API hiccup never
// locks users out.
func (b *Bot) missingChannels(userID int64) []string {
	var missing []string
	for _, channel := range b.cfg.RequiredChannels {
		member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				SuperGroupUsername: channel,
				UserID:             userID,
			},
		})
		if err != nil {
			log.Printf("bot: membership check failed for %s: %v", channel, err)
			continue
		}
		switch member.Status {
		case "creator", "administrator", "member":
		default:
			missing = append(missing, channel)
		}
	}
	return missing
}

func (b *Bot) sendJoinPrompt(chatID int64, channels []string) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels))
	for _, channel := range channels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🚀 Join "+channel, channelURL(channel)),
		))
	}
	msg := tgbotapi.NewMessage(chatID, MsgJoinPrompt)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.send(msg); err != nil {
		log.Printf("bot: join prompt dropped for chat %d: %v", chatID, err)
	}
}

// qualityKeyboard builds one row of buttons, highest quality first.
func qualityKeyboard(formats []model.FormatOption) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(formats))
	for _, f := range formats {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(f.Label(), qualityCallbackData(f.Height)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("bot: callback answer dropped: %v", err)
	}
}

// sendText sends a message and logs delivery failures.
func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.SendText(chatID, text); err != nil {
		log.Printf("bot: message dropped for chat %d: %v", chatID, err)
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return u.FirstName
}

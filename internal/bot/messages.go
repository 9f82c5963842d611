package bot

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hako/durafmt"

	"github.com/clipgram/clipgram/internal/stats"
)

// User-visible message texts
const (
	MsgWelcome = "👋 Hi! Send me a video link from Facebook, Instagram or TikTok and I will fetch it for you.\n\nPick a quality when asked and the video arrives right here."

	MsgUnsupported    = "🤔 I only understand links from Facebook, Instagram and TikTok. Send one of those."
	MsgRateLimited    = "🐢 Easy there! You have used up your requests for this minute. Try again shortly."
	MsgBusy           = "⏳ I am still working on your previous request. Wait for it to finish."
	MsgAnalyzeFailed  = "⚠️ I could not read that link. Check that the video is public and try again."
	MsgChooseQuality  = "🎬 Choose a quality:"
	MsgSessionExpired = "⌛️ That selection has expired. Send the link again."
	MsgJoinPrompt     = "🔐 To use this bot you need to join our channel first. Tap the button below, then send your link again."
	MsgNotAdmin       = "⛔️ This command is for the administrator only."

	// CallbackQueued is the toast shown when a quality button is accepted.
	CallbackQueued = "✅ Queued"
)

// analyzeFrames are cycled as message edits while a link is being probed.
var analyzeFrames = []string{
	"🔍 Analyzing link.",
	"🔍 Analyzing link..",
	"🔍 Analyzing link...",
}

const (
	analyzeFrameDelay = 700 * time.Millisecond
	longPollTimeout   = 60 // seconds
	maxReportLines    = 10

	qualityCallbackPrefix = "quality:"
)

// IsSupportedLink reports whether text is an http(s) URL whose host belongs
// to one of the supported domains. Subdomains count, unrelated hosts that
// merely contain a supported name do not.
func IsSupportedLink(text string, domains []string) bool {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// qualityCallbackData encodes a quality button payload for a given height.
func qualityCallbackData(height int) string {
	return qualityCallbackPrefix + strconv.Itoa(height)
}

// parseQualityCallback decodes a quality button payload.
func parseQualityCallback(data string) (int, bool) {
	raw, found := strings.CutPrefix(data, qualityCallbackPrefix)
	if !found {
		return 0, false
	}
	height, err := strconv.Atoi(raw)
	if err != nil || height <= 0 {
		return 0, false
	}
	return height, true
}

// renderStatsReport formats the admin statistics message.
func renderStatsReport(r stats.Report, now time.Time) string {
	uptime := durafmt.Parse(now.Sub(r.StartedAt).Truncate(time.Second)).LimitFirstN(2).String()

	var b strings.Builder
	b.WriteString("📊 Bot statistics\n\n")
	fmt.Fprintf(&b, "⏱ Uptime: %s\n", uptime)
	fmt.Fprintf(&b, "👥 Users: %d (%d active)\n", r.TotalUsers, r.ActiveUsers)
	fmt.Fprintf(&b, "📥 Requests: %d\n", r.TotalRequests)

	if len(r.Top) > 0 {
		b.WriteString("\n🏆 Top users:\n")
		for i, e := range r.Top {
			if i >= maxReportLines {
				fmt.Fprintf(&b, "… and %d more\n", len(r.Top)-maxReportLines)
				break
			}
			fmt.Fprintf(&b, "%d. %s: %d\n", i+1, e.DisplayName, e.Requests)
		}
	}
	return b.String()
}

// channelURL turns a channel reference (@name or full link) into a t.me URL.
func channelURL(channel string) string {
	if strings.HasPrefix(channel, "http://") || strings.HasPrefix(channel, "https://") {
		return channel
	}
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}

package bot

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// The download pipeline talks to Telegram through these methods; together
// they satisfy the pipeline's notifier interface.

// SendText sends a plain message and returns its message ID.
func (b *Bot) SendText(chatID int64, text string) (int, error) {
	sent, err := b.send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the text of an existing message.
func (b *Bot) EditText(chatID int64, messageID int, text string) error {
	_, err := b.send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

// DeleteMessage removes a message, ignoring failures. A messageID of 0 is a
// no-op.
func (b *Bot) DeleteMessage(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if _, err := b.request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("bot: delete dropped for chat %d message %d: %v", chatID, messageID, err)
	}
}

// SendUploadAction shows the "sending a video" chat action.
func (b *Bot) SendUploadAction(chatID int64) {
	if _, err := b.request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadVideo)); err != nil {
		log.Printf("bot: chat action dropped for chat %d: %v", chatID, err)
	}
}

// SendVideoFile uploads a local file as a streamable video.
func (b *Bot) SendVideoFile(chatID int64, path string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.SupportsStreaming = true
	_, err := b.send(video)
	return err
}

package reporter

import (
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/0x0BSoD/constellation/internal/model"
)

// Reporter announces new posts to a Telegram channel and sends short error
// notifications to an admin chat. It is nil-safe: a nil receiver or a zero
// chat ID turns the matching method into a no-op.
type Reporter struct {
	bot       *tgbotapi.BotAPI
	channelID int64
	adminID   int64
	siteURL   string
}

func New(bot *tgbotapi.BotAPI, channelID, adminID int64, siteURL string) *Reporter {
	return &Reporter{bot: bot, channelID: channelID, adminID: adminID, siteURL: strings.TrimSuffix(siteURL, "/")}
}

// Announce tells the channel about a freshly published post.
func (r *Reporter) Announce(post model.Post) {
	if r == nil || r.bot == nil || r.channelID == 0 {
		return
	}
	r.send(r.channelID, announcement(post, r.siteURL))
}

func (r *Reporter) Notify(msg string) {
	if r == nil || r.bot == nil || r.adminID == 0 {
		return
	}
	r.send(r.adminID, msg)
}

func (r *Reporter) send(chatID int64, text string) {
	if _, err := r.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("failed to send telegram message", "chat_id", chatID, "err", err)
	}
}

func announcement(post model.Post, siteURL string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "New star: %s\n%s", post.Title, post.CreatedAt.Format("January 2, 2006"))

	switch {
	case post.ExternalURL != "":
		fmt.Fprintf(&sb, "\n\n%s", post.ExternalURL)
	case siteURL != "":
		fmt.Fprintf(&sb, "\n\n%s/api/posts/%s", siteURL, post.ID)
	}

	return sb.String()
}

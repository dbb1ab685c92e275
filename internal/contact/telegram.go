package contact

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"

	"github.com/cpmpazar/cpm-pazar/internal/listing"
)

const relayTemplate = `
	📩 *Satıcıya mesaj isteği*

	İlan: %s
	Satıcı: %s
	İlan no: %s
`

// MessageSender abstracts the ability to send Telegram messages.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramRelay forwards contact requests to a moderators' chat. When sending
// fails it degrades to the simulated acknowledgement.
type TelegramRelay struct {
	sender MessageSender
	chatID int64
}

// NewTelegramRelay creates a relay posting to chatID.
func NewTelegramRelay(sender MessageSender, chatID int64) *TelegramRelay {
	return &TelegramRelay{sender: sender, chatID: chatID}
}

// NewTelegramRelayFromToken authorizes a bot with token and creates a relay.
func NewTelegramRelayFromToken(token string, chatID int64) (*TelegramRelay, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	bot.Debug = false
	log.Info().Str("username", bot.Self.UserName).Int64("chatID", chatID).Msg("telegram contact relay authorized")
	return NewTelegramRelay(bot, chatID), nil
}

// ContactSeller implements Contacter.
func (r *TelegramRelay) ContactSeller(ctx context.Context, l listing.Listing) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := fmt.Sprintf(strings.TrimSpace(dedent.Dedent(relayTemplate)),
		escapeMarkdown(l.Title), escapeMarkdown(l.SellerName), l.ID)

	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := r.sender.Send(msg); err != nil {
		log.Error().Err(err).Str("listingID", l.ID).Msg("failed to relay contact request")
		return Simulated{}.ContactSeller(ctx, l)
	}

	log.Info().Str("listingID", l.ID).Str("seller", l.SellerName).Msg("contact request relayed")
	return fmt.Sprintf(MsgContactRelayed, l.SellerName), nil
}

// escapeMarkdown escapes special characters for Telegram Markdown V1
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}

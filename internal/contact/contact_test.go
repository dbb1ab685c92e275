package contact

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cpmpazar/cpm-pazar/internal/listing"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

var testListing = listing.Listing{ID: "1700000000000", Title: "BMW M5_F90", SellerName: "KingDrifter01"}

func TestSimulated(t *testing.T) {
	ack, err := Simulated{}.ContactSeller(context.Background(), testListing)
	require.NoError(t, err)
	assert.Equal(t, "Satıcıyla (KingDrifter01) iletişime geçiliyor... (Simülasyon)", ack)
}

func TestTelegramRelay_Success(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok &&
			msg.ChatID == -100 &&
			msg.ParseMode == tgbotapi.ModeMarkdown &&
			assert.Contains(t, msg.Text, "İlan: BMW M5\\_F90") &&
			assert.Contains(t, msg.Text, "Satıcı: KingDrifter01") &&
			assert.Contains(t, msg.Text, "İlan no: 1700000000000")
	})).Return(tgbotapi.Message{}, nil)

	relay := NewTelegramRelay(sender, -100)
	ack, err := relay.ContactSeller(context.Background(), testListing)

	require.NoError(t, err)
	assert.Equal(t, "Mesajın moderatörlere iletildi, KingDrifter01 seninle oyunda iletişime geçecek.", ack)
	sender.AssertExpectations(t)
}

func TestTelegramRelay_SendFailureFallsBackToSimulated(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found"))

	relay := NewTelegramRelay(sender, -100)
	ack, err := relay.ContactSeller(context.Background(), testListing)

	require.NoError(t, err)
	assert.Contains(t, ack, "(Simülasyon)")
}

func TestTelegramRelay_CancelledContext(t *testing.T) {
	sender := new(mockSender)
	relay := NewTelegramRelay(sender, -100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := relay.ContactSeller(ctx, testListing)
	assert.ErrorIs(t, err, context.Canceled)
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

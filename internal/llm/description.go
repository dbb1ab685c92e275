package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
)

// Fallback texts placed into the description field instead of an error.
const (
	MsgAPIKeyMissing    = "API Anahtarı bulunamadı. Lütfen yapılandırmayı kontrol edin."
	MsgDescriptionEmpty = "Açıklama oluşturulamadı."
	MsgGenerationFailed = "Yapay zeka şu an meşgul, lütfen açıklamayı kendiniz yazın."
	DefaultFeaturesHint = "Hızlı, modifiyeli"
)

const descriptionPrompt = `
	Sen Car Parking Multiplayer (CPM) oyunu için uzman bir araba satıcısısın.
	Aşağıdaki bilgilere göre bu araba için dikkat çekici, heyecan verici ve kısa bir satış ilanı açıklaması yaz.

	Araba Modeli: %s
	Fiyat: %s
	Ekstra Özellikler: %s

	Lütfen şunlara dikkat et:
	1. Oyuncuların ilgisini çekecek terimler kullan (Örn: Drift ayarı, Chrome kaplama, 1695HP, Full çizim vb.).
	2. Samimi ve iddialı bir dil kullan.
	3. Türkçe yaz.
	4. Maksimum 3 cümle olsun.
`

// BuildDescriptionPrompt embeds the inputs verbatim into the ad-copy prompt.
func BuildDescriptionPrompt(carName, priceText, features string) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(descriptionPrompt)), carName, priceText, features)
}

// DescriptionClient is a one-shot ad-copy generator. There is no retry,
// backoff or streaming; a failed call yields a fixed fallback text.
type DescriptionClient struct {
	generator TextGenerator // nil when no API key is configured
	timeout   time.Duration
}

// NewDescriptionClient creates a client. A nil generator means the service
// credential is missing and every call returns MsgAPIKeyMissing.
func NewDescriptionClient(generator TextGenerator, timeout time.Duration) *DescriptionClient {
	return &DescriptionClient{generator: generator, timeout: timeout}
}

// Configured reports whether a generator is available.
func (c *DescriptionClient) Configured() bool {
	return c.generator != nil
}

// Generate implements Describer.
func (c *DescriptionClient) Generate(ctx context.Context, carName, priceText, features string) string {
	if c.generator == nil {
		return MsgAPIKeyMissing
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.generator.GenerateText(ctx, BuildDescriptionPrompt(carName, priceText, features))
	if err != nil {
		log.Error().Err(err).Str("carName", carName).Dur("elapsed", time.Since(start)).Msg("description generation failed")
		return MsgGenerationFailed
	}

	if result == nil || strings.TrimSpace(result.Text) == "" {
		log.Warn().Str("carName", carName).Msg("description generation returned empty text")
		return MsgDescriptionEmpty
	}

	log.Info().
		Str("carName", carName).
		Bool("cached", result.Cached).
		Dur("elapsed", time.Since(start)).
		Msg("description generated")

	return result.Text
}

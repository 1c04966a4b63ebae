package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-layout-translator/internal/logger"
)

// LLMConfig configures an OpenAI-compatible chat model translator.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	SourceLanguage string
	TargetLanguage string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryInterval switches from exponential backoff to a constant interval.
	RetryInterval time.Duration
}

// LLMTranslator translates paragraphs with a chat model.
type LLMTranslator struct {
	chat   model.BaseChatModel
	config LLMConfig
}

// NewLLMTranslator creates the chat model client. A missing API key is an
// error.
func NewLLMTranslator(ctx context.Context, cfg LLMConfig) (*LLMTranslator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is not configured")
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewLLMTranslatorWithModel(chatModel, cfg), nil
}

// NewLLMTranslatorWithModel uses an existing chat model.
func NewLLMTranslatorWithModel(chat model.BaseChatModel, cfg LLMConfig) *LLMTranslator {
	return &LLMTranslator{chat: chat, config: cfg}
}

func (t *LLMTranslator) systemPrompt() string {
	return fmt.Sprintf(
		"You translate paragraphs extracted from a PDF document from %s to %s.\n"+
			"Reply with the translation only, as a single paragraph, without quotes, notes or explanations.\n"+
			"Keep numbers, formulas, citations and proper nouns unchanged where appropriate.",
		languageName(t.config.SourceLanguage), languageName(t.config.TargetLanguage))
}

func (t *LLMTranslator) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if t.config.RetryInterval > 0 {
		b = backoff.NewConstantBackOff(t.config.RetryInterval)
	} else {
		b = backoff.NewExponentialBackOff()
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.config.MaxRetries)), ctx)
}

// Translate implements Translator. Transient model errors are retried;
// an empty reply fails with ErrEmptyTranslation.
func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(t.systemPrompt()),
		schema.UserMessage(text),
	}

	attempt := 0
	result, err := backoff.RetryWithData(func() (string, error) {
		attempt++
		resp, err := t.chat.Generate(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			logger.Warn("translation request failed",
				logger.Int("attempt", attempt),
				logger.Err(err))
			return "", err
		}
		out := strings.TrimSpace(resp.Content)
		if out == "" {
			return "", backoff.Permanent(ErrEmptyTranslation)
		}
		return out, nil
	}, t.backOff(ctx))
	if err != nil {
		return "", fmt.Errorf("translation failed after %d attempt(s): %w", attempt, err)
	}

	logger.Debug("paragraph translated",
		logger.Int("sourceChars", len([]rune(text))),
		logger.Int("attempts", attempt))
	return result, nil
}

func languageName(code string) string {
	names := map[string]string{
		"en": "English", "ja": "Japanese", "zh": "Chinese", "ko": "Korean",
		"de": "German", "fr": "French", "es": "Spanish", "it": "Italian",
		"pt": "Portuguese", "ru": "Russian", "th": "Thai",
	}
	if name, ok := names[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ItemTranslator translates inventory item names into English, consulting
// the cache first so a repeated sync yields identical names.
type ItemTranslator struct {
	gen        TextGenerator
	cache      TranslationCache
	sourceLang string
	logger     *slog.Logger
}

// NewItemTranslator creates a translator for names written in sourceLang.
func NewItemTranslator(gen TextGenerator, cache TranslationCache, sourceLang string, logger *slog.Logger) *ItemTranslator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemTranslator{
		gen:        gen,
		cache:      cache,
		sourceLang: sourceLang,
		logger:     logger.With("component", "translator"),
	}
}

// TranslateNames returns a translation for every name it could translate.
// A name that fails to translate is left out so the caller keeps the
// original. Only a canceled context is reported as an error.
func (t *ItemTranslator) TranslateNames(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	var usage TokenUsage

	for _, name := range names {
		text := strings.TrimSpace(name)
		if text == "" {
			continue
		}
		if _, done := out[name]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if cached, ok, err := t.cache.Get(ctx, t.sourceLang, text); err != nil {
			t.logger.WarnContext(ctx, "translation cache lookup failed", "name", text, "error", err)
		} else if ok {
			out[name] = cached
			continue
		}

		resp, err := t.gen.GenerateContent(ctx, t.prompt(text))
		if err != nil {
			t.logger.WarnContext(ctx, "translation failed, keeping original", "name", text, "error", err)
			continue
		}
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens

		translated := cleanTranslation(resp.Content)
		if translated == "" {
			t.logger.WarnContext(ctx, "empty translation, keeping original", "name", text)
			continue
		}
		out[name] = translated
		if err := t.cache.Put(ctx, t.sourceLang, text, translated); err != nil {
			t.logger.WarnContext(ctx, "failed to cache translation", "name", text, "error", err)
		}
	}

	if usage.PromptTokens > 0 {
		t.logger.DebugContext(ctx, "translated item names",
			"prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens)
	}
	return out, nil
}

func (t *ItemTranslator) prompt(text string) string {
	return fmt.Sprintf(`Translate the following grocery inventory item name from language code %q to English.
Return ONLY the translated name on a single line, without quotes or explanations.

Item name: %s`, t.sourceLang, text)
}

// cleanTranslation keeps the first line of a model answer and strips quotes.
func cleanTranslation(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(strings.Trim(s, "\"'`"))
}

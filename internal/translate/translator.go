// Package translate localizes delay-risk reasons with Google Cloud
// Translation.
//
// Reasons are generated in English from a small set of templates, so the
// same strings repeat across complaints and refreshes. Each distinct
// reason is translated once and cached.
//
// Graceful degradation: without an API key, or when the target language
// is English, no client is created and reasons stay in English. A failed
// API call keeps the English text too.
package translate

import (
	"context"
	"fmt"
	"log"
	"sync"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"civicmon/internal/analytics"
)

// translator is the part of *translate.Client the localizer uses.
type translator interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// Localizer translates reason strings into one target language.
type Localizer struct {
	client translator
	target language.Tag

	mu    sync.Mutex
	cache map[string]string
}

// NewLocalizer creates a Localizer for lang (a BCP 47 tag such as "hi").
//
// Returns nil with no error when apiKey is empty or lang is English.
func NewLocalizer(ctx context.Context, apiKey, lang string) (*Localizer, error) {
	if apiKey == "" {
		log.Println("⚠️  TRANSLATE_API_KEY not set. Reason localization disabled.")
		return nil, nil
	}

	target, err := language.Parse(lang)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATE_LANGUAGE %q: %w", lang, err)
	}
	if base, _ := target.Base(); base.String() == "en" {
		return nil, nil
	}

	client, err := translate.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}

	log.Printf("✓ Reason localization configured (%s)", target)
	return newLocalizer(client, target), nil
}

func newLocalizer(client translator, target language.Tag) *Localizer {
	return &Localizer{
		client: client,
		target: target,
		cache:  make(map[string]string),
	}
}

// LocalizeReasons returns a copy of risks with every reason translated.
// The input slice is never modified.
//
// On an API error the English reasons are returned along with the error.
func (l *Localizer) LocalizeReasons(ctx context.Context, risks []analytics.DelayRisk) ([]analytics.DelayRisk, error) {
	if l == nil || len(risks) == 0 {
		return risks, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var missing []string
	queued := make(map[string]bool)
	for _, r := range risks {
		for _, reason := range r.Reasons {
			if _, ok := l.cache[reason]; ok || queued[reason] {
				continue
			}
			queued[reason] = true
			missing = append(missing, reason)
		}
	}

	if len(missing) > 0 {
		log.Printf("  → Translating %d reasons to %s...", len(missing), l.target)
		out, err := l.client.Translate(ctx, missing, l.target, &translate.Options{
			Source: language.English,
			Format: translate.Text,
		})
		if err != nil {
			return risks, fmt.Errorf("translation failed: %w", err)
		}
		if len(out) != len(missing) {
			return risks, fmt.Errorf("translation returned %d results for %d inputs", len(out), len(missing))
		}
		for i, t := range out {
			l.cache[missing[i]] = t.Text
		}
	}

	localized := make([]analytics.DelayRisk, len(risks))
	for i, r := range risks {
		reasons := make([]string, len(r.Reasons))
		for j, reason := range r.Reasons {
			reasons[j] = l.cache[reason]
		}
		r.Reasons = reasons
		localized[i] = r
	}
	return localized, nil
}

// Close releases the API client.
func (l *Localizer) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}

package speech

import (
	"strings"

	"github.com/hammamikhairi/voxturn/internal/domain"
)

// PickVoice chooses a voice for locale: an exact locale match first, then
// any voice of the same language, then the fallback locales in order.
func PickVoice(voices []domain.Voice, locale string, fallbacks ...string) (domain.Voice, bool) {
	for _, want := range append([]string{locale}, fallbacks...) {
		if v, ok := matchLocale(voices, want); ok {
			return v, true
		}
	}
	return domain.Voice{}, false
}

func matchLocale(voices []domain.Voice, locale string) (domain.Voice, bool) {
	if locale == "" {
		return domain.Voice{}, false
	}
	for _, v := range voices {
		if strings.EqualFold(v.Locale, locale) {
			return v, true
		}
	}
	lang := language(locale)
	for _, v := range voices {
		if strings.EqualFold(language(v.Locale), lang) {
			return v, true
		}
	}
	return domain.Voice{}, false
}

// language returns "en" for "en-US" and "en_US".
func language(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		return locale[:i]
	}
	return locale
}

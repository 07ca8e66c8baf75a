package i18n

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/cache"
)

func newTestTranslator(t *testing.T, loads *int) *Translator {
	t.Helper()

	dicts := map[string]map[string]string{
		"en": {"greeting": "Hello %{name}", "farewell": "Bye"},
		"es": {"greeting": "Hola %{name}"},
	}
	tr, err := NewWithLoader(cache.NewMemoryStore(), "en", time.Hour, []string{"es", "en"}, func(lang string) (map[string]string, error) {
		*loads++
		return dicts[lang], nil
	})
	require.NoError(t, err)
	return tr
}

func TestTranslateFallbackChain(t *testing.T) {
	ctx := context.Background()
	var loads int
	tr := newTestTranslator(t, &loads)

	require.Equal(t, "Hola Ada", tr.T(ctx, "es", "greeting", "name", "Ada"))
	require.Equal(t, "Bye", tr.T(ctx, "es", "farewell"))
	require.Equal(t, "missing.key", tr.T(ctx, "es", "missing.key"))
	require.Equal(t, "Hello Ada", tr.T(ctx, "fr", "greeting", "name", "Ada"))
}

func TestDictionariesAreCached(t *testing.T) {
	ctx := context.Background()
	var loads int
	tr := newTestTranslator(t, &loads)

	tr.T(ctx, "en", "greeting")
	tr.T(ctx, "en", "farewell")
	tr.T(ctx, "en", "greeting")
	require.Equal(t, 1, loads)
}

func TestNegotiate(t *testing.T) {
	var loads int
	tr := newTestTranslator(t, &loads)

	require.Equal(t, "es", tr.Negotiate("es", "de-DE"))
	require.Equal(t, "es", tr.Negotiate("", "es-MX,es;q=0.9,en;q=0.5"))
	require.Equal(t, "en", tr.Negotiate("", "ja-JP"))
	require.Equal(t, "en", tr.Negotiate("", ""))
	require.Equal(t, []string{"en", "es"}, tr.Languages())
}

func TestEmbeddedCatalogs(t *testing.T) {
	tr, err := New(cache.NewMemoryStore(), "en", time.Minute)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"en", "es", "de"}, tr.Languages())

	ctx := context.Background()
	require.Equal(t, "Badge unlocked: Early Bird", tr.T(ctx, "en", "notification.badge_unlocked.title", "badge", "Early Bird"))
	require.Equal(t, "Insignia desbloqueada: Early Bird", tr.T(ctx, "es", "notification.badge_unlocked.title", "badge", "Early Bird"))
	// de has no goal_completed body, so English is used.
	require.Contains(t, tr.T(ctx, "de", "notification.goal_completed.body", "target", 5, "unit", "km"), "You hit 5 km")
}

// Package i18n resolves server generated messages in the user's language.
//
// Lookup order is the requested language, then the default language, then
// the key itself. Dictionaries are read from the embedded catalogs through a
// cache.Store so they expire and reload after the configured TTL.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/templui/thrive/internal/cache"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var catalogFS embed.FS

const cachePrefix = "i18n:dict:"

// Loader returns the dictionary of one language.
type Loader func(lang string) (map[string]string, error)

type Translator struct {
	store       cache.Store
	ttl         time.Duration
	defaultLang string
	langs       []string
	matcher     language.Matcher
	load        Loader
}

// New builds a translator over the embedded catalogs.
func New(store cache.Store, defaultLang string, ttl time.Duration) (*Translator, error) {
	langs, err := embeddedLanguages()
	if err != nil {
		return nil, err
	}
	return NewWithLoader(store, defaultLang, ttl, langs, embeddedLoader)
}

func NewWithLoader(store cache.Store, defaultLang string, ttl time.Duration, langs []string, load Loader) (*Translator, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("no languages available")
	}

	// The default language goes first so the matcher falls back to it.
	ordered := []string{defaultLang}
	for _, l := range langs {
		if l != defaultLang {
			ordered = append(ordered, l)
		}
	}

	tags := make([]language.Tag, 0, len(ordered))
	for _, l := range ordered {
		tag, err := language.Parse(l)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", l, err)
		}
		tags = append(tags, tag)
	}

	return &Translator{
		store:       store,
		ttl:         ttl,
		defaultLang: defaultLang,
		langs:       ordered,
		matcher:     language.NewMatcher(tags),
		load:        load,
	}, nil
}

func embeddedLanguages() ([]string, error) {
	entries, err := fs.ReadDir(catalogFS, "locales")
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		langs = append(langs, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(langs)
	return langs, nil
}

func embeddedLoader(lang string) (map[string]string, error) {
	raw, err := catalogFS.ReadFile("locales/" + lang + ".json")
	if err != nil {
		return nil, err
	}
	dict := map[string]string{}
	err = json.Unmarshal(raw, &dict)
	return dict, err
}

func (t *Translator) Default() string {
	return t.defaultLang
}

// Languages lists supported languages, default first.
func (t *Translator) Languages() []string {
	return append([]string(nil), t.langs...)
}

func (t *Translator) Supported(lang string) bool {
	for _, l := range t.langs {
		if l == lang {
			return true
		}
	}
	return false
}

// Negotiate picks the best supported language. A supported preferred
// language wins; otherwise the Accept-Language header is matched.
func (t *Translator) Negotiate(preferred, acceptLanguage string) string {
	if t.Supported(preferred) {
		return preferred
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.defaultLang
	}

	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		return t.defaultLang
	}
	return t.langs[idx]
}

// dictionary returns the language's messages, reloading after the TTL.
func (t *Translator) dictionary(ctx context.Context, lang string) map[string]string {
	dict := map[string]string{}
	ok, err := cache.GetJSON(ctx, t.store, cachePrefix+lang, &dict)
	if err != nil {
		slog.Warn("failed to read cached dictionary", "error", err, "lang", lang)
	}
	if ok {
		return dict
	}

	dict, err = t.load(lang)
	if err != nil {
		slog.Warn("failed to load dictionary", "error", err, "lang", lang)
		return nil
	}

	err = cache.SetJSON(ctx, t.store, cachePrefix+lang, dict, t.ttl)
	if err != nil {
		slog.Warn("failed to cache dictionary", "error", err, "lang", lang)
	}
	return dict
}

// T translates key into lang. Args are name/value pairs substituted into
// %{name} placeholders.
func (t *Translator) T(ctx context.Context, lang, key string, args ...any) string {
	msg, ok := t.lookup(ctx, lang, key)
	if !ok {
		msg = key
	}
	return interpolate(msg, args)
}

func (t *Translator) lookup(ctx context.Context, lang, key string) (string, bool) {
	if lang != "" && lang != t.defaultLang {
		if msg, ok := t.dictionary(ctx, lang)[key]; ok {
			return msg, true
		}
	}
	msg, ok := t.dictionary(ctx, t.defaultLang)[key]
	return msg, ok
}

func interpolate(msg string, args []any) string {
	if len(args) < 2 || !strings.Contains(msg, "%{") {
		return msg
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "%{"+fmt.Sprint(args[i])+"}", fmt.Sprint(args[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

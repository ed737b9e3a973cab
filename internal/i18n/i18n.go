package i18n

import (
	"embed"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"web2json/internal/errs"
)

const (
	ZhCN = "zh-CN"
	EnUS = "en-US"

	DefaultLocale = ZhCN
)

//go:embed locales/*.json
var localeFS embed.FS

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Params are substituted into {name} placeholders.
type Params map[string]any

// Provider resolves translation keys for the active locale. The active locale
// is changed only through SetLocale, which also persists it.
type Provider struct {
	tables map[string]map[string]any
	store  Store
	log    *slog.Logger

	mu     sync.RWMutex
	locale string
}

// New loads the embedded tables and restores the persisted locale. An
// unreadable or unknown persisted value falls back to DefaultLocale.
func New(store Store, log *slog.Logger) (*Provider, error) {
	tables, err := loadTables()
	if err != nil {
		return nil, err
	}

	p := &Provider{
		tables: tables,
		store:  store,
		log:    log,
		locale: DefaultLocale,
	}

	saved, err := store.Load()
	switch {
	case err != nil:
		log.Warn("failed to read saved locale, using default", slog.String("error", err.Error()))
	case saved == "":
	case !p.known(saved):
		log.Warn("ignoring unknown saved locale", slog.String("locale", saved))
	default:
		p.locale = saved
	}

	return p, nil
}

func loadTables() (map[string]map[string]any, error) {
	tables := make(map[string]map[string]any, 2)
	for _, name := range Locales() {
		raw, err := localeFS.ReadFile("locales/" + name + ".json")
		if err != nil {
			return nil, errors.Wrapf(err, "read locale %s", name)
		}

		var table map[string]any
		if err := jsoniter.Unmarshal(raw, &table); err != nil {
			return nil, errors.Wrapf(err, "decode locale %s", name)
		}
		tables[name] = table
	}
	return tables, nil
}

// Locales lists the supported locales.
func Locales() []string {
	return []string{ZhCN, EnUS}
}

func (p *Provider) known(locale string) bool {
	_, ok := p.tables[locale]
	return ok
}

func (p *Provider) Locale() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.locale
}

func (p *Provider) SetLocale(locale string) error {
	if !p.known(locale) {
		return &errs.ValidationError{Field: "locale", Err: fmt.Errorf("unsupported locale %q", locale)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Save(locale); err != nil {
		return errors.Wrap(err, "save locale")
	}
	p.locale = locale

	p.log.Debug("locale changed", slog.String("locale", locale))
	return nil
}

// Toggle switches between zh-CN and en-US and returns the new locale.
func (p *Provider) Toggle() (string, error) {
	next := ZhCN
	if p.Locale() == ZhCN {
		next = EnUS
	}
	if err := p.SetLocale(next); err != nil {
		return p.Locale(), err
	}
	return next, nil
}

// T resolves a dot-separated key in the active locale. A missing key, or one
// that does not end at a string, resolves to the key itself.
func (p *Provider) T(key string, params Params) string {
	table := p.tables[p.Locale()]

	var value any = table
	for _, seg := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return key
		}
		if value, ok = m[seg]; !ok {
			return key
		}
	}

	s, ok := value.(string)
	if !ok || s == "" {
		return key
	}
	if len(params) == 0 {
		return s
	}

	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := params[match[1:len(match)-1]]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return match
	})
}

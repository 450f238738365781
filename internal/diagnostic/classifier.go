// Package diagnostic maps raw failure conditions onto the closed issue
// taxonomy, with a localized message and remedy per kind.
package diagnostic

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/stemsi/exstem-ingest/internal/model"
)

//go:embed locales/*.json
var localeFS embed.FS

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "en"

// Classifier builds issues. It has no side effects and is safe for
// concurrent use.
type Classifier struct {
	localizer *i18n.Localizer
}

// New loads the embedded locales and returns a classifier speaking lang,
// falling back to English for missing messages.
func New(lang string) (*Classifier, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	if _, err := language.Parse(lang); err != nil {
		return nil, fmt.Errorf("parse language %q: %w", lang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}

	return &Classifier{localizer: i18n.NewLocalizer(bundle, lang, DefaultLanguage)}, nil
}

// Severity is the default severity of each kind.
func Severity(kind model.IssueKind) model.Severity {
	switch kind {
	case model.IssueFileUnreadable, model.IssueColumnUnresolved,
		model.IssueDuplicateIdentity, model.IssueBookletConfigInvalid:
		return model.SeverityBlocking
	case model.IssueRowMalformed, model.IssueAnswerLengthMismatch:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// New builds the issue for kind at loc. Row and column are shown 1-based in
// the message and kept 0-based on the issue.
func (c *Classifier) New(kind model.IssueKind, loc model.Location, detail string) model.Issue {
	msg := c.t("issue." + string(kind) + ".message")
	if where := c.where(loc); where != "" {
		msg = where + ": " + msg
	}
	return model.Issue{
		Kind:     kind,
		Severity: Severity(kind),
		Row:      loc.Row,
		Column:   loc.Column,
		Message:  msg,
		Remedy:   c.t("issue." + string(kind) + ".remedy"),
		Detail:   detail,
	}
}

// FromError classifies an error returned by the pipeline. The second result
// is false for errors outside the taxonomy.
func (c *Classifier) FromError(err error) (model.Issue, bool) {
	var kind model.IssueKind
	switch {
	case err == nil:
		return model.Issue{}, false
	case errors.Is(err, model.ErrFileUnreadable):
		kind = model.IssueFileUnreadable
	case errors.Is(err, model.ErrBookletConfig), errors.Is(err, model.ErrUnknownBooklet):
		kind = model.IssueBookletConfigInvalid
	case errors.Is(err, model.ErrDuplicateRole), errors.Is(err, model.ErrColumnOutOfRange):
		kind = model.IssueColumnUnresolved
	default:
		return model.Issue{}, false
	}
	return c.New(kind, model.NoLocation, err.Error()), true
}

func (c *Classifier) where(loc model.Location) string {
	data := map[string]any{"Row": loc.Row + 1, "Column": loc.Column + 1}
	switch {
	case loc.Row >= 0 && loc.Column >= 0:
		return c.td("location.cell", data)
	case loc.Row >= 0:
		return c.td("location.row", data)
	case loc.Column >= 0:
		return c.td("location.column", data)
	}
	return ""
}

func (c *Classifier) t(id string) string {
	return c.td(id, nil)
}

func (c *Classifier) td(id string, data map[string]any) string {
	s, err := c.localizer.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		return id
	}
	return s
}

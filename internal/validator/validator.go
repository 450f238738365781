package validator

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/stemsi/exstem-ingest/internal/model"
)

var (
	// trans is the English translator bound to Gin's validator.
	trans ut.Translator

	// standalone validates structs that do not come from a request. It has
	// its own translator since translations are registered per validator.
	standalone      *govalidator.Validate
	standaloneTrans ut.Translator
	standaloneOnce  sync.Once
)

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		trans = configure(v)
	}
}

// configure applies the json tag names and the domain tags to v, and returns
// a fresh English translator registered on it.
func configure(v *govalidator.Validate) ut.Translator {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("field_role", func(fl govalidator.FieldLevel) bool {
		return model.FieldRole(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("exam_type", func(fl govalidator.FieldLevel) bool {
		return model.ExamType(fl.Field().String()).Valid()
	})

	// Register English translations.
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	t, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, t)
	registerMessage(v, t, "field_role", "{0} must be one of the column roles")
	registerMessage(v, t, "exam_type", "{0} must be a known exam type")
	return t
}

func registerMessage(v *govalidator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe govalidator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		})
}

func engine() *govalidator.Validate {
	standaloneOnce.Do(func() {
		standalone = govalidator.New(govalidator.WithRequiredStructEnabled())
		standaloneTrans = configure(standalone)
	})
	return standalone
}

// FieldsError carries translated field messages for a struct that failed
// validation outside of a request.
type FieldsError struct {
	Fields map[string]string
}

func (e *FieldsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		if strings.Contains(msg, f) {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, f+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// Struct validates s (an exam profile, a layout, a CLI option set) and
// returns a *FieldsError on failure.
func Struct(s interface{}) error {
	if err := engine().Struct(s); err != nil {
		return &FieldsError{Fields: translate(err, standaloneTrans)}
	}
	return nil
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	return translate(err, trans)
}

func translate(err error, t ut.Translator) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fieldPath(fe)] = fe.Translate(t)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// fieldPath drops the top-level struct name so nested fields read as
// "subjects[0].end".
func fieldPath(fe govalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Package profile reads exam profiles (answer key, booklet tables, subject
// ranges and optional fixed-width layout) from YAML or JSON files.
package profile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/stemsi/exstem-ingest/internal/answerkey"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/validator"
)

// ErrDuplicateProfile is returned by LoadDir when two files share an exam id.
var ErrDuplicateProfile = errors.New("duplicate exam profile")

var extensions = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

// Load reads and checks the profile at path.
func Load(path string) (model.ExamProfile, error) {
	format, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return model.ExamProfile{}, fmt.Errorf("profile %s: unsupported file type", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return model.ExamProfile{}, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	p, err := Decode(f, format)
	if err != nil {
		return model.ExamProfile{}, fmt.Errorf("profile %s: %w", filepath.Base(path), err)
	}
	if info, err := f.Stat(); err == nil {
		p.UpdatedAt = info.ModTime().UTC()
	}
	return p, nil
}

// Decode reads a profile in format ("yaml" or "json") and checks it. Struct
// rules are reported as *validator.FieldsError, key and booklet consistency
// as model.ErrBookletConfig.
func Decode(r io.Reader, format string) (model.ExamProfile, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return model.ExamProfile{}, fmt.Errorf("read profile: %w", err)
	}

	var p model.ExamProfile
	if err := v.Unmarshal(&p); err != nil {
		return model.ExamProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	p.Type = model.ExamType(strings.ToUpper(string(p.Type)))
	if err := Check(p); err != nil {
		return model.ExamProfile{}, err
	}
	return p, nil
}

// Check runs struct validation and then builds the key once to surface
// booklet and subject errors.
func Check(p model.ExamProfile) error {
	if err := validator.Struct(p); err != nil {
		return err
	}
	if _, err := answerkey.New(p); err != nil {
		return err
	}
	return nil
}

// LoadDir reads every profile file directly inside dir, keyed by exam id.
func LoadDir(dir string) (map[string]model.ExamProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profile dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := extensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make(map[string]model.ExamProfile, len(names))
	from := make(map[string]string, len(names))
	for _, name := range names {
		p, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := from[p.ID]; dup {
			return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateProfile, p.ID, prev, name)
		}
		from[p.ID] = name
		out[p.ID] = p
	}
	return out, nil
}

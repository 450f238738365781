// Package preflight runs the aggregate go/no-go check between matching and
// commit.
package preflight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/exstem-ingest/internal/corrector"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// Classifier turns a kind and location into a user-facing issue.
type Classifier interface {
	New(kind model.IssueKind, loc model.Location, detail string) model.Issue
}

// Input is everything the validator looks at. It is never modified.
type Input struct {
	Mapping       model.ColumnMapping
	QuestionCount int
	// Booklets is the number of booklets the key knows, canonical included.
	Booklets int
	Outcomes []model.RowOutcome
	// Accepted lists overridable kinds an operator chose to accept; their
	// blocking issues are reported as warnings.
	Accepted map[model.IssueKind]bool
}

// Validator is stateless.
type Validator struct {
	classifier Classifier
}

// New returns a Validator that builds issues with c.
func New(c Classifier) *Validator {
	return &Validator{classifier: c}
}

type report struct {
	classifier Classifier
	accepted   map[model.IssueKind]bool
	result     model.PreflightResult
	perRow     map[int][]model.IssueKind
}

func (r *report) add(issue model.Issue) {
	if issue.Row >= 0 {
		r.perRow[issue.Row] = append(r.perRow[issue.Row], issue.Kind)
	}
	if issue.Severity == model.SeverityBlocking && r.accepted[issue.Kind] && issue.Kind.Overridable() {
		issue.Severity = model.SeverityWarning
		issue.Detail = strings.TrimSpace(issue.Detail + " (accepted)")
	}
	if issue.Severity == model.SeverityBlocking {
		r.result.Errors = append(r.result.Errors, issue)
		return
	}
	r.result.Warnings = append(r.result.Warnings, issue)
}

func (r *report) issue(kind model.IssueKind, loc model.Location, detail string) model.Issue {
	return r.classifier.New(kind, loc, detail)
}

// Validate checks the mapping, every row and cross-row identity. A low match
// rate is reported but never blocks.
func (v *Validator) Validate(in Input) model.PreflightResult {
	r := &report{
		classifier: v.classifier,
		accepted:   in.Accepted,
		perRow:     make(map[int][]model.IssueKind),
		result: model.PreflightResult{
			Errors:   []model.Issue{},
			Warnings: []model.Issue{},
			Columns:  in.Mapping.Analyses,
		},
	}

	r.checkMapping(in)
	for _, o := range in.Outcomes {
		r.checkRow(in, o)
	}
	r.checkDuplicates(in.Outcomes)

	bound := 0
	r.result.Rows = make([]model.RowSummary, len(in.Outcomes))
	for i, o := range in.Outcomes {
		s := model.RowSummary{
			Row:        o.Row,
			Status:     o.Match.Status,
			Confidence: o.Match.Confidence,
			Malformed:  o.Malformed,
			Scored:     o.Scorable(),
			Issues:     r.perRow[o.Row],
		}
		if o.Match.Student != nil {
			s.StudentID = o.Match.Student.ID
		}
		if o.Analysis != nil {
			s.Net = o.Analysis.Total.Net
		}
		if o.Match.Bound() && !o.Malformed {
			bound++
		}
		r.result.Rows[i] = s
	}
	if len(in.Outcomes) > 0 {
		r.result.MatchRate = float64(bound) / float64(len(in.Outcomes))
	}
	r.result.Go = len(r.result.Errors) == 0
	return r.result
}

func (r *report) checkMapping(in Input) {
	m := in.Mapping
	if !m.Has(model.RoleStudentNumber) && !m.Has(model.RoleNationalID) && !m.Has(model.RoleFullName) {
		r.add(r.issue(model.IssueColumnUnresolved, model.NoLocation, "no identity column (student number, national id or name) is mapped"))
	}
	if !m.Has(model.RoleAnswers) {
		r.add(r.issue(model.IssueColumnUnresolved, model.NoLocation, "no answers column is mapped"))
	}
	if !m.Has(model.RoleBooklet) && in.Booklets > 1 {
		issue := r.issue(model.IssueBookletConfigInvalid, model.NoLocation, "no booklet column is mapped; every row is scored as the canonical booklet")
		issue.Severity = model.SeverityWarning
		r.add(issue)
	}
	for _, c := range m.Unmapped() {
		detail := "column is unmapped"
		if c.Header != "" {
			detail = fmt.Sprintf("column %q is unmapped", c.Header)
		}
		issue := r.issue(model.IssueColumnUnresolved, model.AtColumn(c.Column), detail)
		issue.Severity = model.SeverityWarning
		r.add(issue)
	}
}

func (r *report) checkRow(in Input, o model.RowOutcome) {
	if o.Malformed {
		r.add(r.issue(model.IssueRowMalformed, model.AtRow(o.Row), o.Problem))
		return
	}

	if o.BookletError != "" {
		r.add(r.issue(model.IssueBookletConfigInvalid, model.AtRow(o.Row), o.BookletError))
	} else if in.Booklets > 1 && in.Mapping.Has(model.RoleBooklet) && strings.TrimSpace(o.AnswerSet.Booklet) == "" {
		issue := r.issue(model.IssueBookletConfigInvalid, model.AtRow(o.Row), "booklet is empty; scored as the canonical booklet")
		issue.Severity = model.SeverityWarning
		r.add(issue)
	}

	if in.QuestionCount > 0 && in.Mapping.Has(model.RoleAnswers) {
		if n := len([]rune(o.AnswerSet.Answers)); n != in.QuestionCount {
			r.add(r.issue(model.IssueAnswerLengthMismatch, model.AtRow(o.Row),
				fmt.Sprintf("%d answers for %d questions", n, in.QuestionCount)))
		}
	}

	if o.Analysis != nil && o.Analysis.Total.Invalid > 0 {
		r.add(r.issue(model.IssueInvalidAnswerCharacter, model.AtRow(o.Row),
			fmt.Sprintf("%d answers outside the valid choices", o.Analysis.Total.Invalid)))
	}

	switch o.Match.Status {
	case model.MatchManual:
		if !o.Match.Assigned {
			best := 0.0
			if len(o.Match.Alternatives) > 0 {
				best = o.Match.Alternatives[0].Score
			}
			r.add(r.issue(model.IssueMatchAmbiguous, model.AtRow(o.Row),
				fmt.Sprintf("%d candidates, best score %.2f", len(o.Match.Alternatives), best)))
		}
	case model.MatchUnmatched:
		r.add(r.issue(model.IssueMatchAmbiguous, model.AtRow(o.Row), "no roster candidate"))
	}
}

// identityKey is what two rows must share to count as duplicates: the bound
// student, else the normalized student number, else the national id.
func identityKey(o model.RowOutcome) string {
	if o.Match.Bound() {
		return "student:" + o.Match.Student.ID
	}
	if n := corrector.NormalizeStudentNumber(o.Identifier.StudentNumber); n != "" {
		return "number:" + n
	}
	if id := corrector.NormalizeNationalID(o.Identifier.NationalID); id != "" {
		return "national_id:" + id
	}
	return ""
}

func (r *report) checkDuplicates(outcomes []model.RowOutcome) {
	groups := make(map[string][]int)
	var keys []string
	for _, o := range outcomes {
		if o.Malformed {
			continue
		}
		k := identityKey(o)
		if k == "" {
			continue
		}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o.Row)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rows := groups[k]
		if len(rows) < 2 {
			continue
		}
		labels := make([]string, len(rows))
		for i, row := range rows {
			labels[i] = fmt.Sprint(row + 1)
		}
		detail := fmt.Sprintf("rows %s share %s", strings.Join(labels, ", "), k)
		for _, row := range rows {
			r.add(r.issue(model.IssueDuplicateIdentity, model.AtRow(row), detail))
		}
	}
}

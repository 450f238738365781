package preflight

import (
	"testing"

	"github.com/stemsi/exstem-ingest/internal/diagnostic"
	"github.com/stemsi/exstem-ingest/internal/model"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	c, err := diagnostic.New("en")
	if err != nil {
		t.Fatalf("diagnostic.New: %v", err)
	}
	return New(c)
}

func fullMapping() model.ColumnMapping {
	return model.ColumnMapping{Columns: []model.ColumnAssignment{
		{Column: 0, Role: model.RoleStudentNumber, Confidence: 1},
		{Column: 1, Role: model.RoleFullName, Confidence: 1},
		{Column: 2, Role: model.RoleAnswers, Confidence: 1},
	}}
}

var student = &model.RosterStudent{ID: "s1", StudentNumber: "0007", FullName: "Ayşe Yılmaz"}

func matchedRow(row int, number string) model.RowOutcome {
	return model.RowOutcome{
		Row:        row,
		Identifier: model.StudentIdentifier{StudentNumber: number},
		AnswerSet:  model.StudentAnswerSet{Answers: "ABCD"},
		Match:      model.MatchResult{Status: model.MatchExactNumber, Student: student, Confidence: 1},
		Analysis:   &model.ResultAnalysis{Total: model.SubjectScore{Correct: 4, Net: 4}},
	}
}

func countKind(issues []model.Issue, kind model.IssueKind) int {
	n := 0
	for _, i := range issues {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

func TestCleanBatchIsGo(t *testing.T) {
	res := newTestValidator(t).Validate(Input{
		Mapping:       fullMapping(),
		QuestionCount: 4,
		Booklets:      1,
		Outcomes:      []model.RowOutcome{matchedRow(0, "7")},
	})
	if !res.Go || len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.MatchRate != 1 || len(res.Rows) != 1 || res.Rows[0].StudentID != "s1" || !res.Rows[0].Scored {
		t.Errorf("summary = %+v rate=%v", res.Rows, res.MatchRate)
	}
}

func TestDuplicateIdentityBlocks(t *testing.T) {
	in := Input{
		Mapping:       fullMapping(),
		QuestionCount: 4,
		Outcomes:      []model.RowOutcome{matchedRow(0, "7"), matchedRow(1, "007")},
	}
	res := newTestValidator(t).Validate(in)
	if res.Go {
		t.Fatal("duplicate identity did not block")
	}
	if got := len(res.Blocking(model.IssueDuplicateIdentity)); got != 2 {
		t.Errorf("duplicate issues = %d, want 2", got)
	}
	if res.Errors[0].Row != 0 || res.Errors[1].Row != 1 {
		t.Errorf("provenance = %+v", res.Errors)
	}

	in.Accepted = map[model.IssueKind]bool{model.IssueDuplicateIdentity: true}
	res = newTestValidator(t).Validate(in)
	if !res.Go || countKind(res.Warnings, model.IssueDuplicateIdentity) != 2 {
		t.Errorf("accepted duplicates still block: %+v", res)
	}
}

func TestDuplicateByNumberWithoutMatch(t *testing.T) {
	a := model.RowOutcome{Row: 0, Identifier: model.StudentIdentifier{StudentNumber: "0042"}, Match: model.MatchResult{Status: model.MatchUnmatched}}
	b := model.RowOutcome{Row: 1, Identifier: model.StudentIdentifier{StudentNumber: "42"}, Match: model.MatchResult{Status: model.MatchUnmatched}}
	res := newTestValidator(t).Validate(Input{Mapping: fullMapping(), Outcomes: []model.RowOutcome{a, b}})
	if len(res.Blocking(model.IssueDuplicateIdentity)) != 2 {
		t.Errorf("errors = %+v", res.Errors)
	}
}

func TestMissingColumnsBlock(t *testing.T) {
	mapping := model.ColumnMapping{Columns: []model.ColumnAssignment{
		{Column: 0, Role: model.RoleClassName},
		{Column: 1, Role: model.RoleUnmapped, Header: "X"},
	}}
	res := newTestValidator(t).Validate(Input{Mapping: mapping})
	if res.Go {
		t.Fatal("missing identity and answers columns did not block")
	}
	if got := len(res.Blocking(model.IssueColumnUnresolved)); got != 2 {
		t.Errorf("blocking column issues = %d, want 2", got)
	}
	if got := countKind(res.Warnings, model.IssueColumnUnresolved); got != 1 {
		t.Errorf("unmapped column warnings = %d, want 1", got)
	}
	if res.Warnings[0].Column != 1 {
		t.Errorf("warning column = %d", res.Warnings[0].Column)
	}
}

func TestRowLevelIssuesNeverBlock(t *testing.T) {
	short := matchedRow(0, "7")
	short.AnswerSet.Answers = "AB"

	invalid := matchedRow(1, "8")
	invalid.Match.Student = &model.RosterStudent{ID: "s2"}
	invalid.Analysis = &model.ResultAnalysis{Total: model.SubjectScore{Correct: 3, Blank: 1, Invalid: 1}}

	ambiguous := model.RowOutcome{Row: 2, AnswerSet: model.StudentAnswerSet{Answers: "ABCD"},
		Match: model.MatchResult{Status: model.MatchManual, Confidence: 0.7, Alternatives: []model.Candidate{{StudentID: "s1"}}}}
	unmatched := model.RowOutcome{Row: 3, AnswerSet: model.StudentAnswerSet{Answers: "ABCD"},
		Match: model.MatchResult{Status: model.MatchUnmatched}}
	malformed := model.RowOutcome{Row: 4, Malformed: true, Problem: "expected 3 columns, found 2",
		Identifier: model.StudentIdentifier{StudentNumber: "7"}}

	res := newTestValidator(t).Validate(Input{
		Mapping:       fullMapping(),
		QuestionCount: 4,
		Outcomes:      []model.RowOutcome{short, invalid, ambiguous, unmatched, malformed},
	})
	if !res.Go {
		t.Fatalf("row-level issues blocked: %+v", res.Errors)
	}
	want := map[model.IssueKind]int{
		model.IssueAnswerLengthMismatch:   1,
		model.IssueInvalidAnswerCharacter: 1,
		model.IssueMatchAmbiguous:         2,
		model.IssueRowMalformed:           1,
	}
	for kind, n := range want {
		if got := countKind(res.Warnings, kind); got != n {
			t.Errorf("%s warnings = %d, want %d", kind, got, n)
		}
	}
	if res.MatchRate != 0.4 {
		t.Errorf("match rate = %v, want 0.4", res.MatchRate)
	}
	if res.Rows[4].Scored || !res.Rows[4].Malformed {
		t.Errorf("malformed summary = %+v", res.Rows[4])
	}
}

func TestBookletIssues(t *testing.T) {
	mapping := fullMapping()
	mapping.Columns = append(mapping.Columns, model.ColumnAssignment{Column: 3, Role: model.RoleBooklet})

	unknown := matchedRow(0, "7")
	unknown.BookletError = `unknown booklet: "Z"`
	unknown.Analysis = nil
	empty := matchedRow(1, "8")
	empty.Match.Student = &model.RosterStudent{ID: "s2"}

	in := Input{Mapping: mapping, QuestionCount: 4, Booklets: 2, Outcomes: []model.RowOutcome{unknown, empty}}
	res := newTestValidator(t).Validate(in)
	if res.Go || len(res.Blocking(model.IssueBookletConfigInvalid)) != 1 {
		t.Errorf("errors = %+v", res.Errors)
	}
	if countKind(res.Warnings, model.IssueBookletConfigInvalid) != 1 {
		t.Errorf("empty booklet warning missing: %+v", res.Warnings)
	}

	in.Accepted = map[model.IssueKind]bool{model.IssueBookletConfigInvalid: true}
	if res := newTestValidator(t).Validate(in); !res.Go {
		t.Errorf("accepted booklet issue still blocks: %+v", res.Errors)
	}
}

func TestMissingBookletColumnWarns(t *testing.T) {
	res := newTestValidator(t).Validate(Input{Mapping: fullMapping(), Booklets: 3})
	if !res.Go || countKind(res.Warnings, model.IssueBookletConfigInvalid) != 1 {
		t.Errorf("result = %+v", res)
	}
}

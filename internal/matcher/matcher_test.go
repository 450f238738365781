package matcher

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/stemsi/exstem-ingest/internal/model"
)

func newTestMatcher(t *testing.T, students ...model.RosterStudent) *Matcher {
	t.Helper()
	return New(model.NewRoster(students), DefaultConfig())
}

func TestExactNumberScenario(t *testing.T) {
	m := newTestMatcher(t, model.RosterStudent{ID: "s1", StudentNumber: "0007", FullName: "Ayşe Yılmaz", ClassName: "8A"})
	res := m.MatchOne(model.StudentIdentifier{StudentNumber: "7", FullName: "Ayse Yilmaz"})

	if res.Status != model.MatchExactNumber {
		t.Fatalf("status = %s, want exact_number", res.Status)
	}
	if res.Student == nil || res.Student.ID != "s1" || res.Confidence != 1.0 {
		t.Errorf("result = %+v", res)
	}
	if res.Student != &m.Roster().Students[0] {
		t.Error("matched student is a copy, want the roster's own element")
	}
}

func TestExactNationalID(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s1", NationalID: "12345678901", FullName: "Ali Veli"},
		model.RosterStudent{ID: "s2", NationalID: "10987654321", FullName: "Can Su"},
	)
	res := m.MatchOne(model.StudentIdentifier{NationalID: "109 876 543 21"})
	if res.Status != model.MatchExactID || res.Student.ID != "s2" {
		t.Errorf("result = %+v", res)
	}
}

func TestExactOutranksFuzzy(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s1", StudentNumber: "7", FullName: "Ali Veli"},
		model.RosterStudent{ID: "s2", StudentNumber: "8", FullName: "Ayşe Yılmaz"},
	)
	res := m.MatchOne(model.StudentIdentifier{StudentNumber: "007", FullName: "Ayşe Yılmaz"})
	if res.Status != model.MatchExactNumber || res.Student.ID != "s1" {
		t.Errorf("result = %+v, want exact_number s1", res)
	}
	if res.Status.Rank() <= model.MatchFuzzyName.Rank() {
		t.Error("exact rank not above fuzzy")
	}
}

func TestConfidenceBandsAreStrict(t *testing.T) {
	scores := []float64{-1, 0, 0.01, 0.25, 0.5, 0.75, 0.99, 1, 2, math.NaN()}
	for i := 0; i <= 100; i++ {
		scores = append(scores, float64(i)/100)
	}
	statuses := []model.MatchStatus{
		model.MatchExactNumber, model.MatchExactID, model.MatchFuzzyName, model.MatchManual, model.MatchUnmatched,
	}
	for _, hi := range statuses {
		for _, lo := range statuses {
			if hi.Rank() <= lo.Rank() {
				continue
			}
			for _, a := range scores {
				for _, b := range scores {
					if ch, cl := hi.Confidence(a), lo.Confidence(b); ch <= cl {
						t.Fatalf("%s(%v)=%v not above %s(%v)=%v", hi, a, ch, lo, b, cl)
					}
				}
			}
		}
	}
	if got := model.MatchUnmatched.Confidence(1); got != 0 {
		t.Errorf("unmatched confidence = %v, want 0", got)
	}
}

func TestIdenticalNameStaysBelowExact(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s1", StudentNumber: "7", FullName: "Ali Veli"},
		model.RosterStudent{ID: "s2", StudentNumber: "8", FullName: "Ayşe Yılmaz"},
	)
	exact := m.MatchOne(model.StudentIdentifier{StudentNumber: "7"})
	fuzzy := m.MatchOne(model.StudentIdentifier{FullName: "Ayşe Yılmaz"})
	if exact.Status != model.MatchExactNumber || fuzzy.Status != model.MatchFuzzyName {
		t.Fatalf("statuses = %s, %s", exact.Status, fuzzy.Status)
	}
	if exact.Confidence <= fuzzy.Confidence {
		t.Errorf("exact %v not above fuzzy %v", exact.Confidence, fuzzy.Confidence)
	}
	if fuzzy.Confidence >= 1 {
		t.Errorf("fuzzy confidence = %v, want below 1", fuzzy.Confidence)
	}
}

func TestFuzzyAccept(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s1", FullName: "Ayşe Yılmaz", ClassName: "8A"},
		model.RosterStudent{ID: "s2", FullName: "Mehmet Kaya", ClassName: "8A"},
	)
	res := m.MatchOne(model.StudentIdentifier{FullName: "AYSE YILMAS"})
	if res.Status != model.MatchFuzzyName || res.Student.ID != "s1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Confidence < 0.85 || res.Confidence >= 1 {
		t.Errorf("confidence = %v", res.Confidence)
	}
}

func TestFuzzyAmbiguousGoesManual(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s2", FullName: "Ayşe Yılmaz", ClassName: "8B"},
		model.RosterStudent{ID: "s1", FullName: "Ayşe Yılmaz", ClassName: "8A"},
	)
	res := m.MatchOne(model.StudentIdentifier{FullName: "Ayse Yilmaz"})
	if res.Status != model.MatchManual || res.Student != nil {
		t.Fatalf("result = %+v, want manual without student", res)
	}
	if len(res.Alternatives) != 2 || res.Alternatives[0].StudentID != "s1" || res.Alternatives[1].StudentID != "s2" {
		t.Errorf("alternatives = %+v", res.Alternatives)
	}
}

func TestFuzzyRestrictedToClass(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s1", FullName: "Ayşe Yılmaz", ClassName: "8A"},
		model.RosterStudent{ID: "s2", FullName: "Ayşe Yılmaz", ClassName: "8B"},
	)
	res := m.MatchOne(model.StudentIdentifier{FullName: "Ayse Yilmaz", ClassName: "8-b"})
	if res.Status != model.MatchFuzzyName || res.Student.ID != "s2" {
		t.Errorf("result = %+v, want fuzzy s2", res)
	}

	// An unknown class falls back to the whole roster.
	res = m.MatchOne(model.StudentIdentifier{FullName: "Ayse Yilmaz", ClassName: "12C"})
	if res.Status != model.MatchManual {
		t.Errorf("status = %s, want manual", res.Status)
	}
}

func TestTopKAlternatives(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "1", FullName: "Ali Can"},
		model.RosterStudent{ID: "2", FullName: "Ali Cem"},
		model.RosterStudent{ID: "3", FullName: "Ali Cen"},
		model.RosterStudent{ID: "4", FullName: "Ali Cet"},
		model.RosterStudent{ID: "5", FullName: "Ali Ceb"},
	)
	res := m.MatchOne(model.StudentIdentifier{FullName: "Ali Ce"})
	if res.Status != model.MatchManual {
		t.Fatalf("status = %s", res.Status)
	}
	var got []string
	for _, c := range res.Alternatives {
		got = append(got, c.FullName)
	}
	want := []string{"Ali Ceb", "Ali Cem", "Ali Cen"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alternatives = %v, want %v", got, want)
	}
}

func TestUnmatched(t *testing.T) {
	m := newTestMatcher(t, model.RosterStudent{ID: "s1", StudentNumber: "1", FullName: "Ayşe Yılmaz"})
	tests := []struct {
		name string
		id   model.StudentIdentifier
	}{
		{"nothing similar", model.StudentIdentifier{FullName: "Zeynep Demir"}},
		{"empty", model.StudentIdentifier{}},
		{"unknown number without name", model.StudentIdentifier{StudentNumber: "99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.MatchOne(tt.id)
			if res.Status != model.MatchUnmatched || len(res.Alternatives) != 0 || res.Student != nil {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestDuplicateRosterNumberFallsThrough(t *testing.T) {
	m := newTestMatcher(t,
		model.RosterStudent{ID: "s1", StudentNumber: "5", FullName: "Ali Veli"},
		model.RosterStudent{ID: "s2", StudentNumber: "005", FullName: "Ayşe Yılmaz"},
	)
	res := m.MatchOne(model.StudentIdentifier{StudentNumber: "5", FullName: "Ayse Yilmaz"})
	if res.Status != model.MatchFuzzyName || res.Student.ID != "s2" {
		t.Errorf("result = %+v", res)
	}
}

func TestMatchDeterministicAndOrdered(t *testing.T) {
	var students []model.RosterStudent
	for i := 0; i < 40; i++ {
		students = append(students, model.RosterStudent{
			ID:            fmt.Sprintf("s%02d", i),
			StudentNumber: fmt.Sprintf("%04d", i),
			FullName:      fmt.Sprintf("Öğrenci %c%c", 'A'+i%26, 'a'+i%7),
			ClassName:     fmt.Sprintf("8%c", 'A'+i%3),
		})
	}
	roster := model.NewRoster(students)
	before := model.NewRoster(roster.Students)

	ids := make([]model.StudentIdentifier, 0, 60)
	for i := 0; i < 60; i++ {
		switch i % 3 {
		case 0:
			ids = append(ids, model.StudentIdentifier{StudentNumber: fmt.Sprint(i)})
		case 1:
			ids = append(ids, model.StudentIdentifier{FullName: fmt.Sprintf("OGRENCI %c", 'A'+i%26)})
		default:
			ids = append(ids, model.StudentIdentifier{FullName: "Kimse"})
		}
	}

	cfg := DefaultConfig()
	cfg.Workers = 8
	m := New(roster, cfg)
	first, err := m.Match(context.Background(), ids)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	second, err := m.Match(context.Background(), ids)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(first) != len(ids) {
		t.Fatalf("len = %d, want %d", len(first), len(ids))
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Match is not deterministic")
	}
	for i := range ids {
		if want := m.MatchOne(ids[i]); !reflect.DeepEqual(first[i], want) {
			t.Errorf("row %d: parallel %+v != sequential %+v", i, first[i], want)
		}
	}
	if !reflect.DeepEqual(roster.Students, before.Students) {
		t.Error("roster mutated")
	}
}

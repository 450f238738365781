package columnmap

import (
	"errors"
	"testing"

	"github.com/stemsi/exstem-ingest/internal/model"
)

func rowsOf(cells ...[]string) []model.RawRow {
	rows := make([]model.RawRow, len(cells))
	for i, c := range cells {
		rows[i] = model.RawRow{Index: i, Line: i + 1, Cells: c}
	}
	return rows
}

func sampleTable() []model.RawRow {
	return rowsOf(
		[]string{"0007", "Ayşe Yılmaz", "8A", "A", "ABCD", "12345678901"},
		[]string{"12", "Mehmet Kaya", "8B", "B", "BACD", "10987654321"},
		[]string{"31", "Elif Öztürk", "8-A", "A", "AB D", "11111111110"},
	)
}

func assertRoles(t *testing.T, m model.ColumnMapping, want []model.FieldRole) {
	t.Helper()
	if len(m.Columns) != len(want) {
		t.Fatalf("columns = %d, want %d", len(m.Columns), len(want))
	}
	for i, role := range want {
		if got := m.Columns[i].Role; got != role {
			t.Errorf("column %d role = %s, want %s (analysis %+v)", i, got, role, m.Analyses[i])
		}
	}
}

func TestInferWithHeader(t *testing.T) {
	header := []string{"Öğrenci No", "Ad Soyad", "Sınıf", "Kitapçık", "Cevaplar", "TC Kimlik No"}
	m := New(Config{}).Infer(header, sampleTable(), len(header))

	assertRoles(t, m, []model.FieldRole{
		model.RoleStudentNumber,
		model.RoleFullName,
		model.RoleClassName,
		model.RoleBooklet,
		model.RoleAnswers,
		model.RoleNationalID,
	})
	for _, c := range m.Columns {
		if c.Source != model.SourceAuto {
			t.Errorf("column %d source = %s", c.Column, c.Source)
		}
	}
}

func TestInferWithoutHeader(t *testing.T) {
	m := New(Config{}).Infer(nil, sampleTable(), 6)
	assertRoles(t, m, []model.FieldRole{
		model.RoleStudentNumber,
		model.RoleFullName,
		model.RoleClassName,
		model.RoleBooklet,
		model.RoleAnswers,
		model.RoleNationalID,
	})
}

func TestInferResolvesConflicts(t *testing.T) {
	rows := rowsOf(
		[]string{"1", "0007", "Ayşe Yılmaz"},
		[]string{"2", "12", "Mehmet Kaya"},
	)
	m := New(Config{}).Infer(nil, rows, 3)

	if m.Columns[0].Role != model.RoleStudentNumber {
		t.Errorf("column 0 role = %s, want student_number (lower index wins ties)", m.Columns[0].Role)
	}
	if m.Columns[1].Role != model.RoleUnmapped || !m.Analyses[1].Demoted {
		t.Errorf("column 1 = %+v, want demoted to unmapped", m.Columns[1])
	}
	seen := make(map[model.FieldRole]int)
	for _, c := range m.Columns {
		if c.Role.Unique() {
			seen[c.Role]++
		}
	}
	for role, n := range seen {
		if n > 1 {
			t.Errorf("role %s used by %d columns", role, n)
		}
	}
}

func TestInferIgnoresKnownNoiseColumns(t *testing.T) {
	header := []string{"Sıra", "Öğrenci No", "Ad Soyad"}
	rows := rowsOf(
		[]string{"1", "0007", "Ayşe Yılmaz"},
		[]string{"2", "12", "Mehmet Kaya"},
	)
	m := New(Config{}).Infer(header, rows, 3)
	assertRoles(t, m, []model.FieldRole{model.RoleIgnore, model.RoleStudentNumber, model.RoleFullName})
}

func TestInferLeavesWeakColumnsUnmapped(t *testing.T) {
	rows := rowsOf([]string{"85.5", "Ali Can"}, []string{"70.25", "Veli Su"})
	m := New(Config{}).Infer([]string{"Kolon", "Ad Soyad"}, rows, 2)
	if m.Columns[0].Role != model.RoleUnmapped {
		t.Errorf("column 0 role = %s, want unmapped", m.Columns[0].Role)
	}
	if len(m.Unmapped()) != 1 {
		t.Errorf("Unmapped() = %v", m.Unmapped())
	}
}

func TestInferSkipsMalformedSamples(t *testing.T) {
	rows := rowsOf([]string{"7", "ABCD"}, []string{"8", "ABCA"})
	rows = append(rows, model.RawRow{Index: 2, Cells: []string{"garbage here", "!!"}, Malformed: true})
	m := New(Config{}).Infer(nil, rows, 2)
	if m.Analyses[0].SampleSize != 2 {
		t.Errorf("sample size = %d, want 2", m.Analyses[0].SampleSize)
	}
}

func TestMerge(t *testing.T) {
	rows := rowsOf(
		[]string{"1", "0007", "Ayşe Yılmaz"},
		[]string{"2", "12", "Mehmet Kaya"},
	)
	base := New(Config{}).Infer(nil, rows, 3)

	merged, err := Merge(base, map[int]model.FieldRole{1: model.RoleStudentNumber, 0: model.RoleIgnore})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if c := merged.Columns[1]; c.Role != model.RoleStudentNumber || c.Source != model.SourceManual || c.Confidence != 1 {
		t.Errorf("column 1 = %+v", c)
	}
	if merged.Columns[0].Role != model.RoleIgnore {
		t.Errorf("column 0 role = %s", merged.Columns[0].Role)
	}
	if merged.Columns[2].Role != model.RoleFullName {
		t.Errorf("untouched column changed: %+v", merged.Columns[2])
	}
	if base.Columns[1].Role != model.RoleUnmapped {
		t.Errorf("base mapping mutated: %+v", base.Columns[1])
	}
}

func TestMergeDemotesAutoHolder(t *testing.T) {
	rows := rowsOf([]string{"0007", "Ayşe Yılmaz", "x"}, []string{"12", "Mehmet Kaya", "y"})
	base := New(Config{}).Infer(nil, rows, 3)
	merged, err := Merge(base, map[int]model.FieldRole{2: model.RoleStudentNumber})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Columns[0].Role != model.RoleUnmapped {
		t.Errorf("previous holder not demoted: %+v", merged.Columns[0])
	}
	if merged.ColumnFor(model.RoleStudentNumber) != 2 {
		t.Errorf("ColumnFor = %d", merged.ColumnFor(model.RoleStudentNumber))
	}
}

func TestMergeRejects(t *testing.T) {
	base := New(Config{}).Infer(nil, sampleTable(), 6)
	tests := []struct {
		name      string
		overrides map[int]model.FieldRole
		want      error
	}{
		{"duplicate", map[int]model.FieldRole{0: model.RoleFullName, 1: model.RoleFullName}, model.ErrDuplicateRole},
		{"out of range", map[int]model.FieldRole{9: model.RoleAnswers}, model.ErrColumnOutOfRange},
		{"negative", map[int]model.FieldRole{-1: model.RoleAnswers}, model.ErrColumnOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Merge(base, tt.overrides); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Merge(base, map[int]model.FieldRole{0: model.RoleIgnore, 1: model.RoleIgnore}); err != nil {
		t.Errorf("ignore may be repeated: %v", err)
	}
}

func TestFromLayout(t *testing.T) {
	layout := &model.Layout{Fields: []model.LayoutField{
		{Role: model.RoleStudentNumber, Start: 1, End: 4},
		{Role: model.RoleAnswers, Start: 5, End: 10},
	}}
	m := FromLayout(layout)
	if m.ColumnFor(model.RoleAnswers) != 1 || m.Columns[0].Source != model.SourceLayout {
		t.Errorf("mapping = %+v", m)
	}
}

func TestLooksLikeHeader(t *testing.T) {
	tests := []struct {
		cell string
		want bool
	}{
		{"Ad Soyad", true},
		{"KİTAPÇIK", true},
		{"Ogrenci No", true},
		{" Cevaplar ", true},
		{"Answers", true},
		{"Mehmet Kaya", false},
		{"A", false},
		{"ABCD", false},
		{"0007", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			if got := LooksLikeHeader(tt.cell); got != tt.want {
				t.Errorf("LooksLikeHeader(%q) = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

package roster

import (
	"errors"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	in := "\ufeffclass_name,full_name,student_number,national_id\n" +
		"8A,Ayşe Yılmaz,0007,12345678901\n" +
		",,,\n" +
		"8B, Mehmet Kaya ,12\n"

	students, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("got %d students, want 2", len(students))
	}
	if s := students[0]; s.ClassName != "8A" || s.StudentNumber != "0007" || s.NationalID != "12345678901" {
		t.Errorf("first = %+v", s)
	}
	if s := students[1]; s.FullName != "Mehmet Kaya" || s.NationalID != "" {
		t.Errorf("second = %+v", s)
	}
	if students[0].ID == "" || students[0].ID == students[1].ID {
		t.Errorf("ids not generated: %q %q", students[0].ID, students[1].ID)
	}
}

func TestReadKeepsIDs(t *testing.T) {
	students, err := Read(strings.NewReader("id,full_name\ns-1,Elif Şahin\n"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if students[0].ID != "s-1" {
		t.Errorf("id = %q", students[0].ID)
	}
}

func TestReadRequiresName(t *testing.T) {
	if _, err := Read(strings.NewReader("student_number\n1\n")); !errors.Is(err, ErrNoNameColumn) {
		t.Errorf("err = %v, want ErrNoNameColumn", err)
	}
	if _, err := Read(strings.NewReader("")); err == nil {
		t.Error("empty input accepted")
	}
}

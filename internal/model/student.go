package model

// StudentIdentifier is whatever identity a row carries. At least one field
// must be non-empty for the row to be matchable.
type StudentIdentifier struct {
	StudentNumber string `json:"student_number,omitempty"`
	NationalID    string `json:"national_id,omitempty"`
	FullName      string `json:"full_name,omitempty"`
	ClassName     string `json:"class_name,omitempty"`
}

// Empty reports whether the identifier carries nothing to match on.
func (s StudentIdentifier) Empty() bool {
	return s.StudentNumber == "" && s.NationalID == "" && s.FullName == ""
}

// RosterStudent is one enrolled student as supplied by the roster source.
type RosterStudent struct {
	ID            string `json:"id"`
	StudentNumber string `json:"student_number"`
	NationalID    string `json:"national_id"`
	FullName      string `json:"full_name"`
	ClassName     string `json:"class_name"`
}

// Roster is a read-only snapshot of enrolled students. Consumers must not
// modify the slice or its elements.
type Roster struct {
	Students []RosterStudent `json:"students"`
}

// NewRoster copies students into a fresh snapshot.
func NewRoster(students []RosterStudent) *Roster {
	cp := make([]RosterStudent, len(students))
	copy(cp, students)
	return &Roster{Students: cp}
}

// Find returns the student with the given id.
func (r *Roster) Find(id string) (*RosterStudent, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Students {
		if r.Students[i].ID == id {
			return &r.Students[i], true
		}
	}
	return nil, false
}

// Len returns the number of students in the snapshot.
func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Students)
}

package model

// CreateImportRequest is the multipart form of an upload. The file itself
// travels in the "file" part.
type CreateImportRequest struct {
	ExamID     string   `form:"exam_id" binding:"required,max=64"`
	Delimiter  string   `form:"delimiter" binding:"omitempty,len=1"`
	Header     string   `form:"header" binding:"omitempty,oneof=auto yes no"`
	Sheet      string   `form:"sheet" binding:"max=64"`
	FixedWidth bool     `form:"fixed_width"`
	Classes    []string `form:"classes" binding:"dive,max=32"`
}

// MapColumnsRequest carries manual column roles keyed by 0-based column.
type MapColumnsRequest struct {
	Overrides map[int]FieldRole `json:"overrides" binding:"dive,keys,min=0,endkeys,field_role"`
}

// OverrideRequest accepts the blocking issues of one kind.
type OverrideRequest struct {
	Kind IssueKind `json:"kind" binding:"required"`
}

// AssignStudentRequest binds a parked row to a roster student.
type AssignStudentRequest struct {
	Row       *int   `json:"row" binding:"required,min=0"`
	StudentID string `json:"student_id" binding:"required,max=64"`
}

package models

import "time"

// StudentStatus marks whether a learner is still enrolled.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
)

// Student represents a learner registered in the institution. Owned by the
// roster subsystem; read-only to the clearance core.
type Student struct {
	ID        string        `db:"id" json:"id"`
	RegNo     string        `db:"reg_no" json:"reg_no"`
	FullName  string        `db:"full_name" json:"full_name"`
	Year      int           `db:"year" json:"year"`
	Section   string        `db:"section" json:"section"`
	Status    StudentStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Class identifies a year/section cohort.
type Class struct {
	Year    int    `db:"year" json:"year"`
	Section string `db:"section" json:"section"`
}

// ClassAssignment is one (subject, responsible staff) pair currently scheduled
// for a class. Queried live at request-derivation time, never persisted by the
// clearance core.
type ClassAssignment struct {
	Class       Class  `json:"class"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	StaffID     string `db:"staff_id" json:"staff_id"`
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// RosterRepository reads the student/timetable tables owned by the roster
// subsystem. The clearance core only ever queries it, never writes.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// GetStudent fetches a student by identifier.
func (r *RosterRepository) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, reg_no, full_name, year, section, status, created_at, updated_at
	FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ClassOf resolves the student's current class.
func (r *RosterRepository) ClassOf(ctx context.Context, studentID string) (models.Class, error) {
	const query = `SELECT year, section FROM students WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, studentID); err != nil {
		return models.Class{}, err
	}
	return class, nil
}

// AssignmentsFor returns the (subject, responsible staff) pairs currently
// scheduled for the class. The set is read live; the clearance core snapshots
// it at request-creation time.
func (r *RosterRepository) AssignmentsFor(ctx context.Context, class models.Class) ([]models.ClassAssignment, error) {
	const query = `SELECT subject_code, subject_name, staff_id
	FROM class_assignments WHERE year = $1 AND section = $2 ORDER BY subject_code ASC`
	rows := []struct {
		SubjectCode string `db:"subject_code"`
		SubjectName string `db:"subject_name"`
		StaffID     string `db:"staff_id"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, class.Year, class.Section); err != nil {
		return nil, fmt.Errorf("list class assignments: %w", err)
	}
	assignments := make([]models.ClassAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, models.ClassAssignment{
			Class:       class,
			SubjectCode: row.SubjectCode,
			SubjectName: row.SubjectName,
			StaffID:     row.StaffID,
		})
	}
	return assignments, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

// RosterProvider is the external roster collaborator: current class of a
// student and the live (subject, staff) assignments of a class.
type RosterProvider interface {
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	ClassOf(ctx context.Context, studentID string) (models.Class, error)
	AssignmentsFor(ctx context.Context, class models.Class) ([]models.ClassAssignment, error)
}

// Subjects whose display name matches one of these markers are exempt from
// clearance. Substring matching on a human-entered name is a stopgap carried
// from the legacy policy; the roster should eventually carry an explicit flag.
var exemptMarkers = []string{"soft skill", "softskill", "nptel"}

// RegistryService derives the required checkpoint set for a new request.
type RegistryService struct {
	roster RosterProvider
	logger *zap.Logger
}

// NewRegistryService constructs the service.
func NewRegistryService(roster RosterProvider, logger *zap.Logger) *RegistryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryService{roster: roster, logger: logger}
}

// DerivedCheckpoints is the snapshot of required checkpoints computed at
// request-creation time.
type DerivedCheckpoints struct {
	Records []models.ApprovalRecord
	// EmptySubjects reports that roster returned no non-exempt subjects, which
	// lets the subject group trivially approve. Surfaced to the creator as a
	// warning, never swallowed.
	EmptySubjects bool
}

// DeriveCheckpoints resolves the student's class, fetches its assignments,
// applies the exemption filter and unions the remaining subject codes with the
// fixed administrative keys. The result is seeded once and never recomputed.
func (s *RegistryService) DeriveCheckpoints(ctx context.Context, studentID string) (*DerivedCheckpoints, error) {
	student, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}

	class, err := s.roster.ClassOf(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class")
	}
	assignments, err := s.roster.AssignmentsFor(ctx, class)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class assignments")
	}

	seen := make(map[string]struct{}, len(assignments))
	records := make([]models.ApprovalRecord, 0, len(assignments)+len(models.AdminCheckpointKeys))
	for _, assignment := range assignments {
		if SubjectExempt(assignment.SubjectName) {
			continue
		}
		if _, ok := seen[assignment.SubjectCode]; ok {
			continue
		}
		seen[assignment.SubjectCode] = struct{}{}
		name := assignment.SubjectName
		staff := assignment.StaffID
		records = append(records, models.ApprovalRecord{
			CheckpointKey: assignment.SubjectCode,
			Group:         models.GroupSubjects,
			SubjectName:   &name,
			StaffID:       &staff,
			Status:        models.CheckpointStatusPending,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CheckpointKey < records[j].CheckpointKey })

	emptySubjects := len(records) == 0
	if emptySubjects {
		s.logger.Warn("clearance derivation produced no subject checkpoints",
			zap.String("student_id", studentID),
			zap.Int("year", class.Year),
			zap.String("section", class.Section),
		)
	}

	for _, key := range models.AdminCheckpointKeys {
		records = append(records, models.ApprovalRecord{
			CheckpointKey: key,
			Group:         models.GroupAdmin,
			Status:        models.CheckpointStatusPending,
		})
	}

	return &DerivedCheckpoints{Records: records, EmptySubjects: emptySubjects}, nil
}

// SubjectExempt reports whether a subject's display name marks it exempt from
// clearance. Matching is case-insensitive substring containment.
func SubjectExempt(subjectName string) bool {
	name := strings.ToLower(subjectName)
	for _, marker := range exemptMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

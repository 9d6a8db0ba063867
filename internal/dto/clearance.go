package dto

import (
	"time"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// CreateClearanceRequest opens a new no-due cycle for a student.
type CreateClearanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// DecisionRequest records one approver's decision on a checkpoint.
type DecisionRequest struct {
	CheckpointKey string `json:"checkpoint_key" validate:"required"`
	Remarks       string `json:"remarks"`
}

// CheckpointView is the per-checkpoint slice of a status snapshot.
type CheckpointView struct {
	Key         string                  `json:"key"`
	Group       models.CheckpointGroup  `json:"group"`
	SubjectName *string                 `json:"subject_name,omitempty"`
	StaffID     *string                 `json:"staff_id,omitempty"`
	Status      models.CheckpointStatus `json:"status"`
	ApproverID  *string                 `json:"approver_id,omitempty"`
	Remarks     *string                 `json:"remarks,omitempty"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// StatusSnapshot is the full projection of a request: every checkpoint plus the
// derived aggregates. Every write returns one so callers never need a second
// read to learn what the write accomplished.
type StatusSnapshot struct {
	RequestID      string                  `json:"request_id"`
	StudentID      string                  `json:"student_id"`
	Checkpoints    []CheckpointView        `json:"checkpoints"`
	SubjectsStatus models.CheckpointStatus `json:"subjects_status"`
	AdminStatus    models.CheckpointStatus `json:"admin_status"`
	OverallStatus  models.CheckpointStatus `json:"overall_status"`
	Terminal       bool                    `json:"terminal"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
	// PreviousStatus is set on write responses so retried calls can detect
	// no-op re-approvals.
	PreviousStatus *models.CheckpointStatus `json:"previous_status,omitempty"`
	Warnings       []string                 `json:"warnings,omitempty"`
}

// ClearanceListQuery filters the clearance register.
type ClearanceListQuery struct {
	StudentID string
	Status    []models.CheckpointStatus
	Page      int
	PageSize  int
}

// CertificateResponse describes an issued no-due certificate.
type CertificateResponse struct {
	RequestID   string    `json:"request_id"`
	FileName    string    `json:"file_name"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

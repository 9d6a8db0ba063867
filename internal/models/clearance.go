package models

import "time"

// CheckpointStatus enumerates the states of a single approval checkpoint.
type CheckpointStatus string

const (
	CheckpointStatusPending  CheckpointStatus = "PENDING"
	CheckpointStatusApproved CheckpointStatus = "APPROVED"
	CheckpointStatusRejected CheckpointStatus = "REJECTED"
)

// CheckpointGroup partitions checkpoints into the dynamic subject set and the
// fixed administrative set.
type CheckpointGroup string

const (
	GroupSubjects CheckpointGroup = "SUBJECTS"
	GroupAdmin    CheckpointGroup = "ADMIN"
)

// Fixed administrative checkpoint keys required on every clearance request.
const (
	CheckpointKeyOffice    = "office"
	CheckpointKeyHOD       = "hod"
	CheckpointKeyPrincipal = "principal"
)

// AdminCheckpointKeys lists the administrative keys in approval order.
var AdminCheckpointKeys = []string{CheckpointKeyOffice, CheckpointKeyHOD, CheckpointKeyPrincipal}

// ClearanceRequest is one no-due cycle for a student. The three status columns
// are materialized aggregates over the request's approval records and are only
// ever written together with the triggering checkpoint update.
type ClearanceRequest struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	SubjectsStatus CheckpointStatus `db:"subjects_status" json:"subjects_status"`
	AdminStatus    CheckpointStatus `db:"admin_status" json:"admin_status"`
	OverallStatus  CheckpointStatus `db:"overall_status" json:"overall_status"`
	Terminal       bool             `db:"terminal" json:"terminal"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// ApprovalRecord is the ledger row for one checkpoint of one request. It is the
// single source of truth; every other status is derived from these rows.
type ApprovalRecord struct {
	RequestID     string           `db:"request_id" json:"request_id"`
	CheckpointKey string           `db:"checkpoint_key" json:"checkpoint_key"`
	Group         CheckpointGroup  `db:"checkpoint_group" json:"group"`
	SubjectName   *string          `db:"subject_name" json:"subject_name,omitempty"`
	StaffID       *string          `db:"staff_id" json:"staff_id,omitempty"`
	Status        CheckpointStatus `db:"status" json:"status"`
	ApproverID    *string          `db:"approver_id" json:"approver_id,omitempty"`
	Remarks       *string          `db:"remarks" json:"remarks,omitempty"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// ClearanceAggregate holds the derived statuses computed from a request's
// full set of approval records.
type ClearanceAggregate struct {
	Subjects CheckpointStatus `json:"subjects_status"`
	Admin    CheckpointStatus `json:"admin_status"`
	Overall  CheckpointStatus `json:"overall_status"`
	Terminal bool             `json:"terminal"`
}

// AggregateRecords derives group and overall statuses from the ledger rows of a
// single request. It is a pure function; callers persist the result in the same
// transaction as the write that triggered the recompute.
//
// An empty subject partition evaluates to Approved (vacuous truth). Creation
// flags that case as an EmptyRequirementSet anomaly so it never passes silently.
func AggregateRecords(records []ApprovalRecord) ClearanceAggregate {
	var subjects, admin []ApprovalRecord
	for _, rec := range records {
		if rec.Group == GroupAdmin {
			admin = append(admin, rec)
		} else {
			subjects = append(subjects, rec)
		}
	}

	agg := ClearanceAggregate{
		Subjects: groupStatus(subjects),
		Admin:    groupStatus(admin),
	}

	switch {
	case anyRejected(records):
		agg.Overall = CheckpointStatusRejected
	case agg.Subjects == CheckpointStatusApproved && agg.Admin == CheckpointStatusApproved:
		agg.Overall = CheckpointStatusApproved
	default:
		agg.Overall = CheckpointStatusPending
	}
	agg.Terminal = agg.Overall != CheckpointStatusPending
	return agg
}

func groupStatus(records []ApprovalRecord) CheckpointStatus {
	for _, rec := range records {
		if rec.Status == CheckpointStatusRejected {
			return CheckpointStatusRejected
		}
	}
	for _, rec := range records {
		if rec.Status != CheckpointStatusApproved {
			return CheckpointStatusPending
		}
	}
	return CheckpointStatusApproved
}

func anyRejected(records []ApprovalRecord) bool {
	for _, rec := range records {
		if rec.Status == CheckpointStatusRejected {
			return true
		}
	}
	return false
}

// ClearanceRequestFilter constrains register listing queries.
type ClearanceRequestFilter struct {
	StudentID     string
	OverallStatus []CheckpointStatus
	TerminalOnly  bool
	Limit         int
	Offset        int
}

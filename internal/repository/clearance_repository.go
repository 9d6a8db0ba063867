package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

// Sentinel errors surfaced from inside clearance transactions. Services map
// them onto the HTTP-aware taxonomy.
var (
	ErrDuplicateActive   = errors.New("student already has an active clearance request")
	ErrAlreadySeeded     = errors.New("approval records already seeded for request")
	ErrUnknownCheckpoint = errors.New("checkpoint not seeded for request")
	ErrRequestTerminal   = errors.New("clearance request is terminal")
	ErrCheckpointDecided = errors.New("checkpoint already carries a different decision")
)

const pqUniqueViolation = "23505"

// ClearanceRepository persists clearance requests and their approval ledger.
type ClearanceRepository struct {
	db *sqlx.DB
}

// NewClearanceRepository constructs the repository.
func NewClearanceRepository(db *sqlx.DB) *ClearanceRepository {
	return &ClearanceRepository{db: db}
}

// CreateRequest inserts the request row and seeds one Pending approval record
// per checkpoint in a single transaction. A partial unique index on
// (student_id) WHERE NOT terminal enforces the one-active-request rule even
// under concurrent creates.
func (r *ClearanceRepository) CreateRequest(ctx context.Context, request *models.ClearanceRequest, records []models.ApprovalRecord) (err error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = request.CreatedAt
	if request.SubjectsStatus == "" {
		request.SubjectsStatus = models.CheckpointStatusPending
	}
	if request.AdminStatus == "" {
		request.AdminStatus = models.CheckpointStatusPending
	}
	if request.OverallStatus == "" {
		request.OverallStatus = models.CheckpointStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clearance create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRequest = `INSERT INTO clearance_requests
	(id, student_id, subjects_status, admin_status, overall_status, terminal, created_at, updated_at)
	VALUES (:id, :student_id, :subjects_status, :admin_status, :overall_status, :terminal, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertRequest, request); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			err = ErrDuplicateActive
			return err
		}
		return fmt.Errorf("insert clearance request: %w", err)
	}

	if err = seedTx(ctx, tx, request.ID, records); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clearance create: %w", err)
	}
	return nil
}

func seedTx(ctx context.Context, tx *sqlx.Tx, requestID string, records []models.ApprovalRecord) error {
	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT COUNT(*) FROM approval_records WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("check seeded records: %w", err)
	}
	if existing > 0 {
		return ErrAlreadySeeded
	}

	const insertRecord = `INSERT INTO approval_records
	(request_id, checkpoint_key, checkpoint_group, subject_name, staff_id, status, approver_id, remarks, updated_at)
	VALUES (:request_id, :checkpoint_key, :checkpoint_group, :subject_name, :staff_id, :status, :approver_id, :remarks, :updated_at)`
	now := time.Now().UTC()
	for i := range records {
		records[i].RequestID = requestID
		if records[i].Status == "" {
			records[i].Status = models.CheckpointStatusPending
		}
		if records[i].UpdatedAt.IsZero() {
			records[i].UpdatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insertRecord, records[i]); err != nil {
			return fmt.Errorf("seed approval record %s: %w", records[i].CheckpointKey, err)
		}
	}
	return nil
}

// DecisionParams groups the inputs of one approve/reject write.
type DecisionParams struct {
	RequestID     string
	CheckpointKey string
	Status        models.CheckpointStatus
	ApproverID    string
	Remarks       *string
}

// DecisionResult reports the outcome of a checkpoint write together with the
// aggregates before and after, so the caller can detect transitions.
type DecisionResult struct {
	Request       models.ClearanceRequest
	Records       []models.ApprovalRecord
	Previous      models.CheckpointStatus
	PrevAggregate models.ClearanceAggregate
	NewAggregate  models.ClearanceAggregate
}

// SetCheckpointStatus executes the write of one approval record plus the
// recompute-and-persist of the derived statuses as a single serializable unit.
// The request row is locked FOR UPDATE, so concurrent writes to the same
// request serialize while different requests proceed in parallel. Repeating a
// call with identical arguments is a no-op that still returns the snapshot;
// any other write on an already decided checkpoint fails with
// ErrCheckpointDecided, so transitions stay Pending to Approved or Rejected.
func (r *ClearanceRepository) SetCheckpointStatus(ctx context.Context, params DecisionParams) (result *DecisionResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin checkpoint decision: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var request models.ClearanceRequest
	const lockRequest = `SELECT id, student_id, subjects_status, admin_status, overall_status, terminal, created_at, updated_at
	FROM clearance_requests WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &request, lockRequest, params.RequestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock clearance request: %w", err)
	}
	if request.Terminal {
		err = ErrRequestTerminal
		return nil, err
	}

	var record models.ApprovalRecord
	const selectRecord = `SELECT request_id, checkpoint_key, checkpoint_group, subject_name, staff_id, status, approver_id, remarks, updated_at
	FROM approval_records WHERE request_id = $1 AND checkpoint_key = $2`
	if err = tx.GetContext(ctx, &record, selectRecord, params.RequestID, params.CheckpointKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrUnknownCheckpoint
			return nil, err
		}
		return nil, fmt.Errorf("load approval record: %w", err)
	}

	prevAggregate := models.ClearanceAggregate{
		Subjects: request.SubjectsStatus,
		Admin:    request.AdminStatus,
		Overall:  request.OverallStatus,
		Terminal: request.Terminal,
	}
	previous := record.Status
	if previous != params.Status && previous != models.CheckpointStatusPending {
		err = ErrCheckpointDecided
		return nil, err
	}

	now := time.Now().UTC()
	if previous != params.Status {
		const updateRecord = `UPDATE approval_records
		SET status = $1, approver_id = $2, remarks = $3, updated_at = $4
		WHERE request_id = $5 AND checkpoint_key = $6`
		if _, err = tx.ExecContext(ctx, updateRecord, params.Status, params.ApproverID, params.Remarks, now, params.RequestID, params.CheckpointKey); err != nil {
			return nil, fmt.Errorf("update approval record: %w", err)
		}
	}

	records, err := listRecordsTx(ctx, tx, params.RequestID)
	if err != nil {
		return nil, err
	}

	aggregate := models.AggregateRecords(records)
	if previous != params.Status {
		const updateRequest = `UPDATE clearance_requests
		SET subjects_status = $1, admin_status = $2, overall_status = $3, terminal = $4, updated_at = $5
		WHERE id = $6`
		if _, err = tx.ExecContext(ctx, updateRequest, aggregate.Subjects, aggregate.Admin, aggregate.Overall, aggregate.Terminal, now, params.RequestID); err != nil {
			return nil, fmt.Errorf("persist derived statuses: %w", err)
		}
		request.SubjectsStatus = aggregate.Subjects
		request.AdminStatus = aggregate.Admin
		request.OverallStatus = aggregate.Overall
		request.Terminal = aggregate.Terminal
		request.UpdatedAt = now
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkpoint decision: %w", err)
	}

	return &DecisionResult{
		Request:       request,
		Records:       records,
		Previous:      previous,
		PrevAggregate: prevAggregate,
		NewAggregate:  aggregate,
	}, nil
}

func listRecordsTx(ctx context.Context, tx *sqlx.Tx, requestID string) ([]models.ApprovalRecord, error) {
	const query = `SELECT request_id, checkpoint_key, checkpoint_group, subject_name, staff_id, status, approver_id, remarks, updated_at
	FROM approval_records WHERE request_id = $1 ORDER BY checkpoint_group DESC, checkpoint_key ASC`
	var records []models.ApprovalRecord
	if err := tx.SelectContext(ctx, &records, query, requestID); err != nil {
		return nil, fmt.Errorf("list approval records: %w", err)
	}
	return records, nil
}

// GetRequest fetches a clearance request by identifier.
func (r *ClearanceRepository) GetRequest(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	const query = `SELECT id, student_id, subjects_status, admin_status, overall_status, terminal, created_at, updated_at
	FROM clearance_requests WHERE id = $1`
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// ListRecords returns all approval records of a request, subjects first.
func (r *ClearanceRepository) ListRecords(ctx context.Context, requestID string) ([]models.ApprovalRecord, error) {
	const query = `SELECT request_id, checkpoint_key, checkpoint_group, subject_name, staff_id, status, approver_id, remarks, updated_at
	FROM approval_records WHERE request_id = $1 ORDER BY checkpoint_group DESC, checkpoint_key ASC`
	var records []models.ApprovalRecord
	if err := r.db.SelectContext(ctx, &records, query, requestID); err != nil {
		return nil, fmt.Errorf("list approval records: %w", err)
	}
	return records, nil
}

// ListRequests returns requests matching the filter (latest first).
func (r *ClearanceRepository) ListRequests(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT id, student_id, subjects_status, admin_status, overall_status, terminal, created_at, updated_at
	FROM clearance_requests`)

	conditions := make([]string, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.OverallStatus) > 0 {
		placeholders := make([]string, len(filter.OverallStatus))
		for i, status := range filter.OverallStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("overall_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TerminalOnly {
		conditions = append(conditions, "terminal = true")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list clearance requests: %w", err)
	}
	return requests, nil
}

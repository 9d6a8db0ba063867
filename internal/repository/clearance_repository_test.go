package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/models"
)

func newClearanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestColumns() []string {
	return []string{"id", "student_id", "subjects_status", "admin_status", "overall_status", "terminal", "created_at", "updated_at"}
}

func recordColumns() []string {
	return []string{"request_id", "checkpoint_key", "checkpoint_group", "subject_name", "staff_id", "status", "approver_id", "remarks", "updated_at"}
}

func TestClearanceRepositoryCreateRequestSeedsLedger(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clearance_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approval_records")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name := "Operating Systems"
	staff := "staff-1"
	request := &models.ClearanceRequest{StudentID: "student-1"}
	records := []models.ApprovalRecord{
		{CheckpointKey: "CS301", Group: models.GroupSubjects, SubjectName: &name, StaffID: &staff},
		{CheckpointKey: models.CheckpointKeyOffice, Group: models.GroupAdmin},
	}

	require.NoError(t, repo.CreateRequest(context.Background(), request, records))
	require.NotEmpty(t, request.ID)
	require.Equal(t, request.ID, records[0].RequestID)
	require.Equal(t, models.CheckpointStatusPending, records[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositoryCreateRequestDuplicateActive(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clearance_requests")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})
	mock.ExpectRollback()

	err := repo.CreateRequest(context.Background(), &models.ClearanceRequest{StudentID: "student-1"}, nil)
	require.ErrorIs(t, err, ErrDuplicateActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositoryCreateRequestAlreadySeeded(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clearance_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approval_records")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	err := repo.CreateRequest(context.Background(), &models.ClearanceRequest{StudentID: "student-1"}, nil)
	require.ErrorIs(t, err, ErrAlreadySeeded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositorySetCheckpointStatus(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("req-1", "student-1", "PENDING", "PENDING", "PENDING", false, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_records WHERE request_id = $1 AND checkpoint_key = $2")).
		WithArgs("req-1", "office").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("req-1", "office", "ADMIN", nil, nil, "PENDING", nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY checkpoint_group DESC")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("req-1", "CS301", "SUBJECTS", "Operating Systems", "staff-1", "PENDING", nil, nil, now).
			AddRow("req-1", "office", "ADMIN", nil, nil, "APPROVED", "office-1", nil, now).
			AddRow("req-1", "hod", "ADMIN", nil, nil, "PENDING", nil, nil, now).
			AddRow("req-1", "principal", "ADMIN", nil, nil, "PENDING", nil, nil, now))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clearance_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.SetCheckpointStatus(context.Background(), DecisionParams{
		RequestID:     "req-1",
		CheckpointKey: "office",
		Status:        models.CheckpointStatusApproved,
		ApproverID:    "office-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.CheckpointStatusPending, result.Previous)
	require.Equal(t, models.CheckpointStatusPending, result.PrevAggregate.Overall)
	require.Equal(t, models.CheckpointStatusPending, result.NewAggregate.Overall)
	require.Equal(t, models.CheckpointStatusPending, result.Request.AdminStatus)
	require.False(t, result.Request.Terminal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositorySetCheckpointStatusNoOp(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)
	now := time.Now()

	// Same status again: no UPDATE statements are issued, only the re-read.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("req-1", "student-1", "PENDING", "PENDING", "PENDING", false, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_records WHERE request_id = $1 AND checkpoint_key = $2")).
		WithArgs("req-1", "office").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("req-1", "office", "ADMIN", nil, nil, "APPROVED", "office-1", nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY checkpoint_group DESC")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("req-1", "CS301", "SUBJECTS", "Operating Systems", "staff-1", "PENDING", nil, nil, now).
			AddRow("req-1", "office", "ADMIN", nil, nil, "APPROVED", "office-1", nil, now))
	mock.ExpectCommit()

	result, err := repo.SetCheckpointStatus(context.Background(), DecisionParams{
		RequestID:     "req-1",
		CheckpointKey: "office",
		Status:        models.CheckpointStatusApproved,
		ApproverID:    "office-1",
	})
	require.NoError(t, err)
	require.Equal(t, models.CheckpointStatusApproved, result.Previous)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositorySetCheckpointStatusRejectsReversal(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)
	now := time.Now()

	// An approved checkpoint on a live request cannot be flipped to rejected:
	// the transaction rolls back before any UPDATE is issued.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("req-1", "student-1", "PENDING", "PENDING", "PENDING", false, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_records WHERE request_id = $1 AND checkpoint_key = $2")).
		WithArgs("req-1", "office").
		WillReturnRows(sqlmock.NewRows(recordColumns()).
			AddRow("req-1", "office", "ADMIN", nil, nil, "APPROVED", "office-1", nil, now))
	mock.ExpectRollback()

	_, err := repo.SetCheckpointStatus(context.Background(), DecisionParams{
		RequestID:     "req-1",
		CheckpointKey: "office",
		Status:        models.CheckpointStatusRejected,
		ApproverID:    "office-1",
	})
	require.ErrorIs(t, err, ErrCheckpointDecided)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositorySetCheckpointStatusTerminalRequest(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("req-1", "student-1", "REJECTED", "PENDING", "REJECTED", true, now, now))
	mock.ExpectRollback()

	_, err := repo.SetCheckpointStatus(context.Background(), DecisionParams{
		RequestID:     "req-1",
		CheckpointKey: "office",
		Status:        models.CheckpointStatusApproved,
	})
	require.ErrorIs(t, err, ErrRequestTerminal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositorySetCheckpointStatusUnknownCheckpoint(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("req-1", "student-1", "PENDING", "PENDING", "PENDING", false, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_records WHERE request_id = $1 AND checkpoint_key = $2")).
		WithArgs("req-1", "EE999").
		WillReturnRows(sqlmock.NewRows(recordColumns()))
	mock.ExpectRollback()

	_, err := repo.SetCheckpointStatus(context.Background(), DecisionParams{
		RequestID:     "req-1",
		CheckpointKey: "EE999",
		Status:        models.CheckpointStatusApproved,
	})
	require.ErrorIs(t, err, ErrUnknownCheckpoint)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearanceRepositoryListRequestsFilters(t *testing.T) {
	db, mock, cleanup := newClearanceRepoMock(t)
	defer cleanup()

	repo := NewClearanceRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM clearance_requests")).
		WithArgs("student-1", "APPROVED").
		WillReturnRows(sqlmock.NewRows(requestColumns()).
			AddRow("req-1", "student-1", "APPROVED", "APPROVED", "APPROVED", true, now, now))

	requests, err := repo.ListRequests(context.Background(), models.ClearanceRequestFilter{
		StudentID:     "student-1",
		OverallStatus: []models.CheckpointStatus{models.CheckpointStatusApproved},
	})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	require.Equal(t, "req-1", requests[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

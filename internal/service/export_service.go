package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
	"github.com/noah-isme/campus-clearance-api/pkg/export"
	"github.com/noah-isme/campus-clearance-api/pkg/storage"
)

type exportClearanceStore interface {
	GetRequest(ctx context.Context, id string) (*models.ClearanceRequest, error)
	ListRecords(ctx context.Context, requestID string) ([]models.ApprovalRecord, error)
	ListRequests(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequest, error)
}

type exportRoster interface {
	GetStudent(ctx context.Context, id string) (*models.Student, error)
}

// ExportService renders the clearance register and issues no-due certificates.
type ExportService struct {
	store   exportClearanceStore
	roster  exportRoster
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	audit   auditLogger
	logger  *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(store exportClearanceStore, roster exportRoster, files *storage.LocalStorage, signer *storage.SignedURLSigner, audit auditLogger, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:   store,
		roster:  roster,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		storage: files,
		signer:  signer,
		audit:   audit,
		logger:  logger,
	}
}

var registerHeaders = []string{"request_id", "student_id", "subjects_status", "admin_status", "overall_status", "terminal", "created_at"}

// Register renders the clearance register as CSV.
func (s *ExportService) Register(ctx context.Context, query dto.ClearanceListQuery) ([]byte, string, error) {
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 200
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	requests, err := s.store.ListRequests(ctx, models.ClearanceRequestFilter{
		StudentID:     query.StudentID,
		OverallStatus: query.Status,
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance requests")
	}

	rows := make([]map[string]string, 0, len(requests))
	for _, request := range requests {
		rows = append(rows, map[string]string{
			"request_id":      request.ID,
			"student_id":      request.StudentID,
			"subjects_status": string(request.SubjectsStatus),
			"admin_status":    string(request.AdminStatus),
			"overall_status":  string(request.OverallStatus),
			"terminal":        fmt.Sprintf("%t", request.Terminal),
			"created_at":      request.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	payload, err := s.csv.Render(export.Dataset{Headers: registerHeaders, Rows: rows})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render register")
	}
	filename := fmt.Sprintf("clearance-register-%s.csv", time.Now().UTC().Format("20060102-150405"))
	return payload, filename, nil
}

// Certificate renders and stores the no-due certificate for an approved
// request and returns a signed download reference.
func (s *ExportService) Certificate(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.CertificateResponse, error) {
	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	if request.OverallStatus != models.CheckpointStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "certificate requires an approved clearance")
	}

	student, err := s.roster.GetStudent(ctx, request.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	records, err := s.store.ListRecords(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval records")
	}

	table := export.Dataset{Headers: []string{"checkpoint", "group", "approver", "decided_at"}}
	for _, rec := range records {
		name := rec.CheckpointKey
		if rec.SubjectName != nil {
			name = fmt.Sprintf("%s (%s)", *rec.SubjectName, rec.CheckpointKey)
		}
		approver := ""
		if rec.ApproverID != nil {
			approver = *rec.ApproverID
		}
		table.Rows = append(table.Rows, map[string]string{
			"checkpoint": name,
			"group":      string(rec.Group),
			"approver":   approver,
			"decided_at": rec.UpdatedAt.UTC().Format("2006-01-02"),
		})
	}

	payload, err := s.pdf.RenderCertificate(export.Certificate{
		Title: "No Due Certificate",
		BodyLines: []string{
			fmt.Sprintf("This is to certify that %s (Reg. No. %s), Year %d Section %s, has no dues pending with any department of the institution.", student.FullName, student.RegNo, student.Year, student.Section),
			"All subject and administrative clearances listed below have been approved.",
		},
		Table:     table,
		IssuedAt:  time.Now().UTC().Format("2006-01-02"),
		Reference: request.ID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	filename := fmt.Sprintf("certificates/%s.pdf", request.ID)
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}
	token, expiresAt, err := s.signer.Generate(request.ID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	if s.audit != nil {
		log := &models.AuditLog{
			Action:     models.AuditActionCertificate,
			Resource:   "clearance_request",
			ResourceID: &request.ID,
			IPAddress:  "system",
			UserAgent:  "export-service",
		}
		if actor != nil {
			userID := actor.UserID
			log.UserID = &userID
		}
		if err := s.audit.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to persist certificate audit", zap.Error(err))
		}
	}

	return &dto.CertificateResponse{
		RequestID:   request.ID,
		FileName:    filename,
		DownloadURL: "/downloads?token=" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// OpenDownload validates a signed token and opens the referenced file.
func (s *ExportService) OpenDownload(_ context.Context, token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, nil
}

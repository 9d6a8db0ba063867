package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

// WarningEmptyRequirementSet flags a request whose derivation produced zero
// subject checkpoints. The request still proceeds, but the subject group will
// approve without any teacher ever deciding anything, so creators must see it.
const WarningEmptyRequirementSet = "EMPTY_REQUIREMENT_SET"

type clearanceStore interface {
	CreateRequest(ctx context.Context, request *models.ClearanceRequest, records []models.ApprovalRecord) error
	SetCheckpointStatus(ctx context.Context, params repository.DecisionParams) (*repository.DecisionResult, error)
	GetRequest(ctx context.Context, id string) (*models.ClearanceRequest, error)
	ListRecords(ctx context.Context, requestID string) ([]models.ApprovalRecord, error)
	ListRequests(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequest, error)
}

type checkpointRegistry interface {
	DeriveCheckpoints(ctx context.Context, studentID string) (*DerivedCheckpoints, error)
}

type statusCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type eventEmitter interface {
	Emit(events ...models.NotificationEvent)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ClearanceService orchestrates the clearance request lifecycle: creation,
// checkpoint derivation, approval intake, aggregation and terminal detection.
type ClearanceService struct {
	store     clearanceStore
	registry  checkpointRegistry
	cache     statusCache
	notifier  eventEmitter
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// ClearanceServiceOption configures the service.
type ClearanceServiceOption func(*ClearanceService)

// WithStatusCache enables snapshot caching with the given TTL.
func WithStatusCache(cache statusCache, ttl time.Duration) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithClearanceMetrics attaches workflow counters.
func WithClearanceMetrics(metrics *MetricsService) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.metrics = metrics
	}
}

// WithAuditLogger attaches the audit trail.
func WithAuditLogger(audit auditLogger) ClearanceServiceOption {
	return func(s *ClearanceService) {
		s.audit = audit
	}
}

// NewClearanceService constructs the service.
func NewClearanceService(store clearanceStore, registry checkpointRegistry, notifier eventEmitter, validate *validator.Validate, logger *zap.Logger, opts ...ClearanceServiceOption) *ClearanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ClearanceService{
		store:     store,
		registry:  registry,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateRequest opens a clearance cycle for a student: derives the required
// checkpoint set, seeds the ledger Pending and returns the initial snapshot.
func (s *ClearanceService) CreateRequest(ctx context.Context, req dto.CreateClearanceRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clearance payload")
	}

	derived, err := s.registry.DeriveCheckpoints(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	aggregate := models.AggregateRecords(derived.Records)
	request := &models.ClearanceRequest{
		StudentID:      req.StudentID,
		SubjectsStatus: aggregate.Subjects,
		AdminStatus:    aggregate.Admin,
		OverallStatus:  aggregate.Overall,
	}
	if err := s.store.CreateRequest(ctx, request, derived.Records); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateActive):
			return nil, appErrors.ErrDuplicateActiveRequest
		case errors.Is(err, repository.ErrAlreadySeeded):
			return nil, appErrors.ErrAlreadySeeded
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create clearance request")
		}
	}

	s.metrics.ObserveClearanceRequestCreated()
	s.emitAudit(ctx, actor, models.AuditActionRequestCreate, request.ID, nil, map[string]interface{}{
		"student_id":  request.StudentID,
		"checkpoints": len(derived.Records),
	})

	snapshot := buildSnapshot(request, derived.Records, nil)
	if derived.EmptySubjects {
		snapshot.Warnings = append(snapshot.Warnings, WarningEmptyRequirementSet)
	}
	return snapshot, nil
}

// Approve records a positive decision on one checkpoint.
func (s *ClearanceService) Approve(ctx context.Context, requestID string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	return s.decide(ctx, requestID, req, models.CheckpointStatusApproved, actor)
}

// Reject records a negative decision on one checkpoint; terminal for the request.
func (s *ClearanceService) Reject(ctx context.Context, requestID string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	return s.decide(ctx, requestID, req, models.CheckpointStatusRejected, actor)
}

func (s *ClearanceService) decide(ctx context.Context, requestID string, req dto.DecisionRequest, status models.CheckpointStatus, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	key := strings.TrimSpace(req.CheckpointKey)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "checkpoint_key is required")
	}

	if err := s.authorizeDecision(ctx, requestID, key, actor); err != nil {
		return nil, err
	}

	params := repository.DecisionParams{
		RequestID:     requestID,
		CheckpointKey: key,
		Status:        status,
		ApproverID:    actor.UserID,
		Remarks:       optionalString(req.Remarks),
	}
	result, err := s.store.SetCheckpointStatus(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		case errors.Is(err, repository.ErrRequestTerminal):
			return nil, appErrors.ErrRequestAlreadyTerminal
		case errors.Is(err, repository.ErrCheckpointDecided):
			return nil, appErrors.ErrCheckpointDecided
		case errors.Is(err, repository.ErrUnknownCheckpoint):
			return nil, appErrors.ErrUnknownCheckpoint
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
		}
	}

	s.invalidateSnapshot(ctx, requestID)
	s.metrics.ObserveClearanceDecision(status)
	s.emitAudit(ctx, actor, models.AuditActionCheckpointWrite, requestID, map[string]interface{}{
		"checkpoint_key": key,
		"status":         result.Previous,
	}, map[string]interface{}{
		"checkpoint_key": key,
		"status":         status,
	})

	if events := s.transitionEvents(key, status, result); len(events) > 0 {
		s.metrics.ObserveNotificationsEmitted(len(events))
		s.notifier.Emit(events...)
	}

	prev := result.Previous
	snapshot := buildSnapshot(&result.Request, result.Records, &prev)
	return snapshot, nil
}

// authorizeDecision checks that the actor may decide this checkpoint: subject
// checkpoints belong to the responsible staff, administrative checkpoints to
// their matching role, and admins may decide anything. Runs before the
// serialized write so validation failures never take the request lock.
func (s *ClearanceService) authorizeDecision(ctx context.Context, requestID, key string, actor *models.JWTClaims) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	records, err := s.store.ListRecords(ctx, requestID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval records")
	}
	var record *models.ApprovalRecord
	for i := range records {
		if records[i].CheckpointKey == key {
			record = &records[i]
			break
		}
	}
	if record == nil {
		// Let the transactional path distinguish unknown-request from
		// unknown-checkpoint.
		return nil
	}
	if record.Group == models.GroupAdmin {
		if adminKeyRole(key) != actor.Role {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("checkpoint %s requires the %s role", key, adminKeyRole(key)))
		}
		return nil
	}
	if actor.Role != models.RoleStaff || record.StaffID == nil || *record.StaffID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "subject checkpoints may only be decided by the responsible staff")
	}
	return nil
}

func adminKeyRole(key string) models.UserRole {
	switch key {
	case models.CheckpointKeyOffice:
		return models.RoleOffice
	case models.CheckpointKeyHOD:
		return models.RoleHOD
	case models.CheckpointKeyPrincipal:
		return models.RolePrincipal
	default:
		return ""
	}
}

// transitionEvents derives notification events from a decision result. Events
// fire only on transitions, never when a retried call merely confirms state.
func (s *ClearanceService) transitionEvents(key string, status models.CheckpointStatus, result *repository.DecisionResult) []models.NotificationEvent {
	if result.Previous == status {
		return nil
	}

	var decided *models.ApprovalRecord
	for i := range result.Records {
		if result.Records[i].CheckpointKey == key {
			decided = &result.Records[i]
			break
		}
	}
	if decided == nil {
		return nil
	}

	studentID := result.Request.StudentID
	events := make([]models.NotificationEvent, 0, 4)

	switch status {
	case models.CheckpointStatusApproved:
		if decided.Group == models.GroupAdmin {
			events = append(events, models.NotificationEvent{
				RecipientID: studentID,
				Kind:        models.NotificationAdminApproved,
				Context:     map[string]string{"request_id": result.Request.ID, "checkpoint_key": key},
			})
		}
		if key == models.CheckpointKeyOffice {
			for _, rec := range result.Records {
				if rec.Group == models.GroupSubjects && rec.StaffID != nil {
					events = append(events, models.NotificationEvent{
						RecipientID: *rec.StaffID,
						Kind:        models.NotificationSubjectsUnlocked,
						Context:     map[string]string{"request_id": result.Request.ID, "checkpoint_key": rec.CheckpointKey, "student_id": studentID},
					})
				}
			}
		}
	case models.CheckpointStatusRejected:
		events = append(events, models.NotificationEvent{
			RecipientID: studentID,
			Kind:        models.NotificationCheckpointRejected,
			Context:     map[string]string{"request_id": result.Request.ID, "checkpoint_key": key},
		})
	}

	if result.PrevAggregate.Overall != models.CheckpointStatusApproved && result.NewAggregate.Overall == models.CheckpointStatusApproved {
		events = append(events, models.NotificationEvent{
			RecipientID: studentID,
			Kind:        models.NotificationClearanceApproved,
			Context:     map[string]string{"request_id": result.Request.ID},
		})
		for _, rec := range result.Records {
			if rec.Group == models.GroupAdmin && rec.ApproverID != nil {
				events = append(events, models.NotificationEvent{
					RecipientID: *rec.ApproverID,
					Kind:        models.NotificationClearanceApproved,
					Context:     map[string]string{"request_id": result.Request.ID, "student_id": studentID},
				})
			}
		}
	}

	return events
}

// Status returns the read-only projection of a request. Snapshots are cached;
// every write invalidates the entry so reads never trail an approval.
func (s *ClearanceService) Status(ctx context.Context, requestID string) (*dto.StatusSnapshot, error) {
	cacheKey := snapshotCacheKey(requestID)
	if s.cache != nil {
		var cached dto.StatusSnapshot
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true, 0)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("status cache read failed", zap.Error(err))
		} else {
			s.metrics.RecordCacheOperation(false, 0)
		}
	}

	request, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance request")
	}
	records, err := s.store.ListRecords(ctx, requestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval records")
	}

	snapshot := buildSnapshot(request, records, nil)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn("status cache write failed", zap.Error(err))
		}
	}
	return snapshot, nil
}

// List returns register entries for office dashboards.
func (s *ClearanceService) List(ctx context.Context, query dto.ClearanceListQuery) ([]models.ClearanceRequest, *models.Pagination, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	filter := models.ClearanceRequestFilter{
		StudentID:     strings.TrimSpace(query.StudentID),
		OverallStatus: query.Status,
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	}
	requests, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance requests")
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: len(requests)}
	return requests, pagination, nil
}

func (s *ClearanceService) invalidateSnapshot(ctx context.Context, requestID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, snapshotCacheKey(requestID)); err != nil {
		s.logger.Warn("status cache invalidation failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *ClearanceService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValues, newValues map[string]interface{}) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "clearance_request",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "clearance-service",
	}
	if actor != nil {
		userID := actor.UserID
		log.UserID = &userID
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func snapshotCacheKey(requestID string) string {
	return "clearance:status:" + requestID
}

func buildSnapshot(request *models.ClearanceRequest, records []models.ApprovalRecord, previous *models.CheckpointStatus) *dto.StatusSnapshot {
	checkpoints := make([]dto.CheckpointView, 0, len(records))
	for _, rec := range records {
		checkpoints = append(checkpoints, dto.CheckpointView{
			Key:         rec.CheckpointKey,
			Group:       rec.Group,
			SubjectName: rec.SubjectName,
			StaffID:     rec.StaffID,
			Status:      rec.Status,
			ApproverID:  rec.ApproverID,
			Remarks:     rec.Remarks,
			UpdatedAt:   rec.UpdatedAt,
		})
	}
	return &dto.StatusSnapshot{
		RequestID:      request.ID,
		StudentID:      request.StudentID,
		Checkpoints:    checkpoints,
		SubjectsStatus: request.SubjectsStatus,
		AdminStatus:    request.AdminStatus,
		OverallStatus:  request.OverallStatus,
		Terminal:       request.Terminal,
		CreatedAt:      request.CreatedAt,
		UpdatedAt:      request.UpdatedAt,
		PreviousStatus: previous,
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

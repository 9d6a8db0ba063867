package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/dto"
	"github.com/noah-isme/campus-clearance-api/internal/middleware"
	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type clearanceServiceMock struct {
	snapshot      *dto.StatusSnapshot
	err           error
	listResp      []models.ClearanceRequest
	listErr       error
	lastQuery     dto.ClearanceListQuery
	lastRequestID string
	lastDecision  dto.DecisionRequest
	createCalled  bool
	approveCalled bool
	rejectCalled  bool
	statusCalled  bool
}

func (m *clearanceServiceMock) CreateRequest(ctx context.Context, req dto.CreateClearanceRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	m.createCalled = true
	return m.snapshot, m.err
}

func (m *clearanceServiceMock) Approve(ctx context.Context, requestID string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	m.approveCalled = true
	m.lastRequestID = requestID
	m.lastDecision = req
	return m.snapshot, m.err
}

func (m *clearanceServiceMock) Reject(ctx context.Context, requestID string, req dto.DecisionRequest, actor *models.JWTClaims) (*dto.StatusSnapshot, error) {
	m.rejectCalled = true
	m.lastRequestID = requestID
	m.lastDecision = req
	return m.snapshot, m.err
}

func (m *clearanceServiceMock) Status(ctx context.Context, requestID string) (*dto.StatusSnapshot, error) {
	m.statusCalled = true
	m.lastRequestID = requestID
	return m.snapshot, m.err
}

func (m *clearanceServiceMock) List(ctx context.Context, query dto.ClearanceListQuery) ([]models.ClearanceRequest, *models.Pagination, error) {
	m.lastQuery = query
	return m.listResp, &models.Pagination{Page: 1, PageSize: 50}, m.listErr
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	return c, w
}

func TestClearanceHandlerCreate(t *testing.T) {
	mockSvc := &clearanceServiceMock{snapshot: &dto.StatusSnapshot{RequestID: "req-1", StudentID: "student-1"}}
	handler := NewClearanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateClearanceRequest{StudentID: "student-1"})
	c, w := testContext(t, http.MethodPost, "/clearance/requests", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
}

func TestClearanceHandlerCreateInvalidBody(t *testing.T) {
	handler := NewClearanceHandler(&clearanceServiceMock{})
	c, w := testContext(t, http.MethodPost, "/clearance/requests", []byte(`{"student_id":`))

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearanceHandlerCreateConflict(t *testing.T) {
	mockSvc := &clearanceServiceMock{err: appErrors.ErrDuplicateActiveRequest}
	handler := NewClearanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.CreateClearanceRequest{StudentID: "student-1"})
	c, w := testContext(t, http.MethodPost, "/clearance/requests", payload)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestClearanceHandlerApprove(t *testing.T) {
	mockSvc := &clearanceServiceMock{snapshot: &dto.StatusSnapshot{RequestID: "req-1"}}
	handler := NewClearanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.DecisionRequest{CheckpointKey: "office"})
	c, w := testContext(t, http.MethodPost, "/clearance/requests/req-1/approve", payload)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.approveCalled)
	assert.Equal(t, "req-1", mockSvc.lastRequestID)
	assert.Equal(t, "office", mockSvc.lastDecision.CheckpointKey)
}

func TestClearanceHandlerRejectTerminalConflict(t *testing.T) {
	mockSvc := &clearanceServiceMock{err: appErrors.ErrRequestAlreadyTerminal}
	handler := NewClearanceHandler(mockSvc)

	payload, _ := json.Marshal(dto.DecisionRequest{CheckpointKey: "CS301", Remarks: "dues pending"})
	c, w := testContext(t, http.MethodPost, "/clearance/requests/req-1/reject", payload)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Reject(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.rejectCalled)
}

func TestClearanceHandlerStatusNotFound(t *testing.T) {
	mockSvc := &clearanceServiceMock{err: appErrors.ErrNotFound}
	handler := NewClearanceHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/clearance/requests/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Status(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, mockSvc.statusCalled)
	assert.Equal(t, "missing", mockSvc.lastRequestID)
}

func TestClearanceHandlerListParsesQuery(t *testing.T) {
	mockSvc := &clearanceServiceMock{listResp: []models.ClearanceRequest{{ID: "req-1"}}}
	handler := NewClearanceHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/clearance/requests?student_id=student-1&status=approved,rejected&page=2&page_size=10", nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastQuery.StudentID)
	assert.Equal(t, []models.CheckpointStatus{models.CheckpointStatusApproved, models.CheckpointStatusRejected}, mockSvc.lastQuery.Status)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
	assert.Equal(t, 10, mockSvc.lastQuery.PageSize)
}

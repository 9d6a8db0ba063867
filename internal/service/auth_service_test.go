package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type userRepoStub struct {
	users     map[string]*models.User
	lastLogin map[string]time.Time
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*models.User), lastLogin: make(map[string]time.Time)}
}

func (u *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range u.users {
		if strings.EqualFold(user.Email, email) {
			copy := *user
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (u *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (u *userRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	u.lastLogin[id] = ts
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour, Issuer: "campus-clearance-api"}
}

func seedUser(t *testing.T, repo *userRepoStub, role models.UserRole) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-1",
		Email:        "office@example.edu",
		PasswordHash: string(hash),
		FullName:     "Office Clerk",
		Role:         role,
		Active:       true,
	}
	repo.users[user.ID] = user
	return user
}

func TestAuthServiceLogin(t *testing.T) {
	repo := newUserRepoStub()
	audit := &auditStub{}
	user := seedUser(t, repo, models.RoleOffice)
	svc := NewAuthService(repo, audit, nil, nil, testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.Equal(t, user.ID, res.User.ID)
	require.Equal(t, models.RoleOffice, res.User.Role)
	require.Contains(t, repo.lastLogin, user.ID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionLogin, audit.logs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, models.RoleOffice, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newUserRepoStub()
	user := seedUser(t, repo, models.RoleOffice)
	svc := NewAuthService(repo, &auditStub{}, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(newUserRepoStub(), &auditStub{}, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.edu", Password: "whatever"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := newUserRepoStub()
	user := seedUser(t, repo, models.RoleStaff)
	user.Active = false
	repo.users[user.ID] = user
	svc := NewAuthService(repo, &auditStub{}, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := newUserRepoStub()
	user := seedUser(t, repo, models.RoleOffice)
	svc := NewAuthService(repo, &auditStub{}, nil, nil, testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	other := NewAuthService(repo, &auditStub{}, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)

	_, err = svc.ValidateToken(res.AccessToken + "x")
	require.Error(t, err)
}

func TestAuthServiceValidateTokenRejectsExpired(t *testing.T) {
	repo := newUserRepoStub()
	user := seedUser(t, repo, models.RoleOffice)
	cfg := testAuthConfig()
	cfg.AccessTokenExpiry = -time.Minute
	svc := NewAuthService(repo, &auditStub{}, nil, nil, cfg)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: user.Email, Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.AccessToken)
	require.Error(t, err)
}

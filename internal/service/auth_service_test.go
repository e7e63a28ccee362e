package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/muni-digital/turnos-api/internal/models"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
)

type memAuthRepo struct {
	employees map[string]*models.Employee
	tokens    map[string]*models.RefreshToken
	revoked   []string
}

func newMemAuthRepo() *memAuthRepo {
	return &memAuthRepo{
		employees: make(map[string]*models.Employee),
		tokens:    make(map[string]*models.RefreshToken),
	}
}

func (m *memAuthRepo) FindByEmail(ctx context.Context, q sqlx.ExtContext, email string) (*models.Employee, error) {
	for _, emp := range m.employees {
		if emp.Email == email {
			return emp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memAuthRepo) FindByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return emp, nil
}

func (m *memAuthRepo) UpdateLastLogin(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) error {
	return nil
}

func (m *memAuthRepo) SaveRefreshToken(ctx context.Context, q sqlx.ExtContext, token *models.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *memAuthRepo) FindRefreshToken(ctx context.Context, q sqlx.ExtContext, token string) (*models.RefreshToken, error) {
	stored, ok := m.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (m *memAuthRepo) RevokeRefreshToken(ctx context.Context, q sqlx.ExtContext, id string, at time.Time) error {
	m.revoked = append(m.revoked, id)
	for _, token := range m.tokens {
		if token.ID == id {
			token.Revoked = true
		}
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *memAuthRepo) {
	repo := newMemAuthRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	dept := "dep-a"
	repo.employees["emp-1"] = &models.Employee{
		ID:           "emp-1",
		Email:        "operator@example.com",
		FullName:     "Maria Lopez",
		PasswordHash: string(hash),
		Role:         models.RoleOperator,
		DepartmentID: &dept,
		Active:       true,
	}
	repo.employees["emp-2"] = &models.Employee{
		ID:           "emp-2",
		Email:        "disabled@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleOperator,
		Active:       false,
	}
	svc := NewAuthService(nil, repo, nil, nil, AuthConfig{
		Secret:            "test-secret",
		AccessTokenExpiry: 15 * time.Minute,
		RefreshExpiry:     24 * time.Hour,
		Issuer:            "turnos-api",
	})
	return svc, repo
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operator@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, "emp-1", resp.Employee.ID)
	assert.Equal(t, "dep-a", resp.Employee.DepartmentID)
	assert.Contains(t, repo.tokens, resp.RefreshToken)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.EmployeeID)
	assert.Equal(t, models.RoleOperator, claims.Role)
	assert.Equal(t, "turnos-api", claims.Issuer)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operator@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "disabled@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, repo := newAuthFixture(t)
	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operator@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, login.RefreshToken, resp.RefreshToken)
	assert.True(t, repo.tokens[login.RefreshToken].Revoked)

	// a rotated token must not be accepted again
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenExpired(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.tokens["stale"] = &models.RefreshToken{
		ID:         "tok-1",
		EmployeeID: "emp-1",
		Token:      "stale",
		ExpiresAt:  time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogout(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.tokens["live"] = &models.RefreshToken{
		ID:         "tok-2",
		EmployeeID: "emp-1",
		Token:      "live",
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}

	err := svc.Logout(context.Background(), "live", "emp-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "live", "emp-1"))
	assert.Contains(t, repo.revoked, "tok-2")
}

func TestValidateTokenTampered(t *testing.T) {
	svc, _ := newAuthFixture(t)
	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "operator@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	other := NewAuthService(nil, newMemAuthRepo(), nil, nil, AuthConfig{Secret: "different"})
	_, err = other.ValidateToken(login.AccessToken)
	require.Error(t, err)
}

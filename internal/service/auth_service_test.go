package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/akhilpenumudy/biodataahub/internal/models"
	appErrors "github.com/akhilpenumudy/biodataahub/pkg/errors"
	"github.com/akhilpenumudy/biodataahub/pkg/storage"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	findByIDErr      error
	createdUser      *models.User
	createErr        error
	refreshTokens    map[string]*models.RefreshToken
	refreshTokenErr  error
	createRefreshErr error
	verifiedUserID   string
	lastLoginUpdated bool
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.createdUser = user
	return nil
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) MarkEmailVerified(ctx context.Context, id string, ts time.Time) error {
	m.verifiedUserID = id
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return nil
}

type mockMailer struct {
	sentTo    []string
	lastToken string
	err       error
}

func (m *mockMailer) SendVerification(email, fullName, token string) error {
	if m.err != nil {
		return m.err
	}
	m.sentTo = append(m.sentTo, email)
	m.lastToken = token
	return nil
}

func newAuthService(repo *mockAuthRepo, mailer *mockMailer) *AuthService {
	return NewAuthService(repo, storage.NewTokenSigner("verify-secret", time.Hour), mailer, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
	})
}

func TestAuthServiceSignupSendsVerificationMail(t *testing.T) {
	repo := &mockAuthRepo{}
	mailer := &mockMailer{}
	svc := newAuthService(repo, mailer)

	info, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ada@example.com",
		Password: "password123",
		FullName: "Ada Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", info.Email)
	require.NotNil(t, repo.createdUser)
	assert.False(t, repo.createdUser.EmailVerified)
	assert.NotEqual(t, "password123", repo.createdUser.PasswordHash)
	assert.Equal(t, []string{"ada@example.com"}, mailer.sentTo)
	assert.NotEmpty(t, mailer.lastToken)
}

func TestAuthServiceSignupDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "1", Email: "ada@example.com"}}
	svc := newAuthService(repo, &mockMailer{})

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ada@example.com",
		Password: "password123",
		FullName: "Ada Lovelace",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAuthServiceVerifyEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	mailer := &mockMailer{}
	svc := newAuthService(repo, mailer)

	info, err := svc.Signup(context.Background(), models.SignupRequest{
		Email:    "ada@example.com",
		Password: "password123",
		FullName: "Ada Lovelace",
	})
	require.NoError(t, err)

	repo.userByID = &models.User{ID: info.ID, Email: info.Email}
	err = svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: mailer.lastToken})
	require.NoError(t, err)
	assert.Equal(t, info.ID, repo.verifiedUserID)
}

func TestAuthServiceVerifyEmailRejectsTamperedToken(t *testing.T) {
	repo := &mockAuthRepo{userByID: &models.User{ID: "1", Email: "ada@example.com"}}
	svc := newAuthService(repo, &mockMailer{})

	err := svc.VerifyEmail(context.Background(), models.VerifyEmailRequest{Token: "user.9999999999.cGF5bG9hZA.deadbeef"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Empty(t, repo.verifiedUserID)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), EmailVerified: true}}
	svc := newAuthService(repo, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginUnverifiedEmail(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password)}}
	svc := newAuthService(repo, &mockMailer{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrEmailNotVerified.Code, appErr.Code)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), EmailVerified: true}}
	svc := newAuthService(repo, &mockMailer{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), EmailVerified: true}}
	svc := newAuthService(repo, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[res.RefreshToken].Revoked)

	// Spent tokens cannot be replayed.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	require.Error(t, err)
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), EmailVerified: true}}
	svc := newAuthService(repo, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), res.RefreshToken, "123"))
	assert.True(t, repo.refreshTokens[res.RefreshToken].Revoked)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), EmailVerified: true}}
	svc := newAuthService(repo, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), res.RefreshToken, "someone-else")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceValidateToken(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", FullName: "User", PasswordHash: string(password), EmailVerified: true}}
	svc := newAuthService(repo, &mockMailer{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "123", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

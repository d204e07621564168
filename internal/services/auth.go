package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pestops-bknd/internal/auth"
	"pestops-bknd/internal/config"
	"pestops-bknd/internal/logger"
	"pestops-bknd/internal/models"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// maxSessions is the number of live refresh tokens kept per user.
const maxSessions = 2

type AuthService struct {
	db   *bun.DB
	jwt  *auth.JWTManager
	cfg  *config.Config
	logr *logger.Logger
}

func NewAuthService(db *bun.DB, jwt *auth.JWTManager, cfg *config.Config, logr *logger.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, cfg: cfg, logr: logr}
}

// HashPassword uses bcrypt
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type UserInfo struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Role     models.Role `json:"role"`
}

func userInfo(u *models.User, provider string) *UserInfo {
	return &UserInfo{ID: u.ID, Email: u.Email, Name: u.Name, Provider: provider, Role: u.Role}
}

// LoginLocal checks an email/password pair against the stored bcrypt hash.
func (s *AuthService) LoginLocal(ctx context.Context, email, password, deviceInfo string) (*auth.TokenPair, *UserInfo, error) {
	var u models.User
	err := s.db.NewSelect().Model(&u).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if u.PasswordHash == "" {
		return nil, nil, fmt.Errorf("account not configured for local login: %w", ErrInvalidCredentials)
	}
	if err := ComparePassword(u.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, nil, fmt.Errorf("account disabled: %w", ErrInvalidCredentials)
	}

	s.touchLastLogin(ctx, u.ID)

	pair, err := s.issue(ctx, &u, "local", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	return pair, userInfo(&u, "local"), nil
}

// LoginLDAP binds as the user against the directory, then provisions a local
// agent account on first login.
func (s *AuthService) LoginLDAP(ctx context.Context, ldapUser, ldapPass, deviceInfo string) (*auth.TokenPair, *UserInfo, error) {
	cleanUsername := ldapUser
	if d := s.cfg.LDAPUserDomain; d != "" {
		suffix := "@" + strings.ToLower(d)
		if strings.HasSuffix(strings.ToLower(ldapUser), suffix) {
			cleanUsername = ldapUser[:len(ldapUser)-len(suffix)]
		}
	}
	if cleanUsername == "" || ldapPass == "" {
		return nil, nil, ErrInvalidCredentials
	}

	ldap.DefaultTimeout = 10 * time.Second
	l, err := ldap.DialURL(s.cfg.LDAPServer)
	if err != nil {
		s.logr.Error("LDAP dial failed", zap.Error(err), zap.String("server", s.cfg.LDAPServer))
		return nil, nil, fmt.Errorf("ldap connection failed")
	}
	defer func() {
		if l != nil {
			if closeErr := l.Close(); closeErr != nil {
				s.logr.Debug("LDAP close error", zap.Error(closeErr))
			}
		}
	}()
	l.SetTimeout(30 * time.Second)

	bindDN := cleanUsername
	if s.cfg.LDAPUserDomain != "" {
		bindDN = cleanUsername + "@" + s.cfg.LDAPUserDomain
	}
	if err = l.Bind(bindDN, ldapPass); err != nil {
		s.logr.Warn("LDAP bind failed", zap.String("username", cleanUsername))
		return nil, nil, ErrInvalidCredentials
	}

	searchReq := ldap.NewSearchRequest(
		s.cfg.LDAPBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		fmt.Sprintf("(|(sAMAccountName=%[1]s)(uid=%[1]s))", ldap.EscapeFilter(cleanUsername)),
		[]string{"cn", "mail", "displayName"},
		nil,
	)
	sr, err := l.Search(searchReq)
	if err != nil {
		s.logr.Error("LDAP search failed", zap.Error(err), zap.String("username", cleanUsername))
		return nil, nil, fmt.Errorf("user lookup failed")
	}
	if len(sr.Entries) == 0 {
		s.logr.Warn("LDAP: no entry found", zap.String("username", cleanUsername))
		return nil, nil, fmt.Errorf("user not found in directory")
	}

	entry := sr.Entries[0]
	mail := strings.ToLower(entry.GetAttributeValue("mail"))
	if mail == "" {
		s.logr.Error("LDAP user missing email", zap.String("username", cleanUsername))
		return nil, nil, fmt.Errorf("user account missing email")
	}
	fullName := entry.GetAttributeValue("displayName")
	if fullName == "" {
		fullName = entry.GetAttributeValue("cn")
	}
	if fullName == "" {
		fullName = cleanUsername
	}

	l.Close()
	l = nil

	u, err := s.provisionDirectoryUser(ctx, mail, fullName)
	if err != nil {
		return nil, nil, err
	}
	if !u.Active {
		return nil, nil, fmt.Errorf("account disabled: %w", ErrInvalidCredentials)
	}
	s.touchLastLogin(ctx, u.ID)

	pair, err := s.issue(ctx, u, "ldap", deviceInfo)
	if err != nil {
		return nil, nil, err
	}

	s.logr.Info("LDAP login successful",
		zap.String("user_id", u.ID),
		zap.String("email", mail),
		zap.String("username", cleanUsername))

	return pair, userInfo(u, "ldap"), nil
}

// provisionDirectoryUser returns the local account for a directory user,
// creating it as an agent the first time.
func (s *AuthService) provisionDirectoryUser(ctx context.Context, mail, fullName string) (*models.User, error) {
	var u models.User
	err := s.db.NewSelect().Model(&u).Where("email = ?", mail).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		u = models.User{
			ID:        uuid.New().String(),
			Email:     mail,
			Provider:  "ldap",
			Name:      fullName,
			Role:      models.RoleAgent,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.db.NewInsert().Model(&u).Exec(ctx); err != nil {
			s.logr.Error("Failed to create user", zap.Error(err), zap.String("email", mail))
			return nil, fmt.Errorf("failed to create user account")
		}
		s.logr.Info("Created new LDAP user", zap.String("email", mail), zap.String("id", u.ID))
	case err != nil:
		s.logr.Error("Database error", zap.Error(err), zap.String("email", mail))
		return nil, fmt.Errorf("database error")
	case u.Provider != "ldap":
		_, _ = s.db.NewUpdate().Model(&u).Set("provider = ?", "ldap").Where("id = ?", u.ID).Exec(ctx)
	}
	return &u, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, userID string) {
	now := time.Now().UTC()
	_, _ = s.db.NewUpdate().Model((*models.User)(nil)).
		Set("last_login_at = ?", now).
		Where("id = ?", userID).
		Exec(ctx)
}

func (s *AuthService) issue(ctx context.Context, u *models.User, method, deviceInfo string) (*auth.TokenPair, error) {
	pair, err := s.jwt.GenerateTokenPair(u.ID, s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, u.TokenVersion, method, string(u.Role))
	if err != nil {
		s.logr.Error("Token generation failed", zap.Error(err), zap.String("user_id", u.ID))
		return nil, fmt.Errorf("failed to generate tokens")
	}
	if err := s.storeRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp, pair.JTI, deviceInfo); err != nil {
		s.logr.Error("Failed to store refresh token", zap.Error(err), zap.String("user_id", u.ID))
		return nil, fmt.Errorf("failed to store session")
	}
	return pair, nil
}

// storeRefreshToken stores refresh token hashed and enforces maxSessions per user
func (s *AuthService) storeRefreshToken(ctx context.Context, userID, refreshToken string, expiresAt time.Time, jti, deviceInfo string) error {
	now := time.Now().UTC()
	_, _ = s.db.NewDelete().Model((*models.RefreshToken)(nil)).
		Where("user_id = ? AND expires_at < ?", userID, now).
		Exec(ctx)

	count, err := s.db.NewSelect().Model((*models.RefreshToken)(nil)).
		Where("user_id = ? AND revoked = ? AND expires_at > ?", userID, false, now).
		Count(ctx)
	if err == nil && count >= maxSessions {
		toRemove := count - maxSessions + 1
		_, _ = s.db.NewDelete().Model((*models.RefreshToken)(nil)).
			Where("id IN (SELECT id FROM refresh_tokens WHERE user_id = ? AND revoked = ? AND expires_at > ? ORDER BY created_at ASC LIMIT ?)",
				userID, false, now, toRemove).
			Exec(ctx)
	}

	rt := models.RefreshToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		JTI:        jti,
		TokenHash:  auth.HashToken(refreshToken),
		DeviceInfo: &deviceInfo,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	_, err = s.db.NewInsert().Model(&rt).Exec(ctx)
	return err
}

// Refresh verifies a refresh token, revokes it and issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, deviceInfo string) (*auth.TokenPair, error) {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", ErrInvalidCredentials)
	}
	if claims.Kind != auth.RefreshToken {
		return nil, fmt.Errorf("not a refresh token: %w", ErrInvalidCredentials)
	}

	var rt models.RefreshToken
	err = s.db.NewSelect().Model(&rt).
		Where("jti = ? AND token_hash = ? AND revoked = ? AND expires_at > ?", claims.JTI, auth.HashToken(refreshToken), false, time.Now().UTC()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh token not found or revoked: %w", ErrInvalidCredentials)
	}

	var u models.User
	if err := s.db.NewSelect().Model(&u).Where("id = ?", rt.UserID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("user not found: %w", ErrInvalidCredentials)
	}
	if !u.Active || u.TokenVersion != claims.TokenVersion {
		return nil, fmt.Errorf("session invalidated: %w", ErrInvalidCredentials)
	}

	_, _ = s.db.NewUpdate().Model((*models.RefreshToken)(nil)).
		Set("revoked = ?", true).
		Where("id = ?", rt.ID).
		Exec(ctx)

	return s.issue(ctx, &u, "refresh", deviceInfo)
}

// Logout revokes the refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.VerifyToken(refreshToken)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", ErrInvalidCredentials)
	}
	_, err = s.db.NewUpdate().Model((*models.RefreshToken)(nil)).
		Set("revoked = ?", true).
		Where("jti = ?", claims.JTI).
		Exec(ctx)
	return err
}

// CheckTokenVersion reports whether a token minted at tokenVersion is still
// honoured. Disabled accounts fail the check.
func (s *AuthService) CheckTokenVersion(ctx context.Context, userID string, tokenVersion int) (bool, error) {
	var user models.User
	err := s.db.NewSelect().Model(&user).Column("token_version", "active").Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Active && user.TokenVersion == tokenVersion, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.db.NewSelect().Model(&u).Where("id = ?", userID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

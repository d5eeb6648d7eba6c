package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-backend/config"
	"shop-backend/internal/apperr"
	"shop-backend/internal/models"
	"shop-backend/internal/store"
	"shop-backend/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthService handles registration, login and token verification.
type AuthService struct {
	users     UserStore
	jwtSecret []byte
	tokenTTL  time.Duration
	oauth     *oauth2.Config
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(users UserStore, authCfg config.AuthConfig, oauthCfg config.OAuthConfig) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(authCfg.JWTSecret),
		tokenTTL:  authCfg.TokenTTL,
		oauth: &oauth2.Config{
			ClientID:     oauthCfg.GoogleClientID,
			ClientSecret: oauthCfg.GoogleClientSecret,
			RedirectURL:  oauthCfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		logger: util.GetLogger(),
	}
}

// RegisterRequest represents a registration payload.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents a login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is the token envelope returned by register and login.
type AuthResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
	Token    string `json:"token"`
}

// Register creates a new local account. The email is case-folded before the
// uniqueness check; the password is only ever stored as a bcrypt hash.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        foldEmail(req.Email),
		PasswordHash: string(hash),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, apperr.Internal("failed to create user", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.Hex()))
	return s.tokenResponse(user)
}

// Login verifies credentials and issues a bearer token. Unknown email and bad
// password produce the same response.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, foldEmail(req.Email))
	if err != nil {
		return nil, apperr.Internal("failed to look up user", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	return s.tokenResponse(user)
}

type googleProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LoginWithGoogle exchanges a federated auth code for a verified profile and
// issues a bearer token, creating a local user on first sight with a random
// unusable password placeholder.
func (s *AuthService) LoginWithGoogle(ctx context.Context, code string) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.LoginWithGoogle")
	defer span.End()

	if code == "" {
		return nil, apperr.Validation("missing auth code")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Upstream("failed to exchange auth code", err)
	}

	profile, err := s.fetchGoogleProfile(ctx, token)
	if err != nil {
		return nil, apperr.Upstream("failed to fetch profile", err)
	}
	if profile.Email == "" {
		return nil, apperr.Upstream("provider returned no email", nil)
	}

	user, err := s.users.GetUserByGoogleID(ctx, profile.ID)
	if err != nil {
		return nil, apperr.Internal("failed to look up user", err)
	}
	if user == nil {
		user, err = s.users.GetUserByEmail(ctx, foldEmail(profile.Email))
		if err != nil {
			return nil, apperr.Internal("failed to look up user", err)
		}
	}

	if user == nil {
		// First sight: the placeholder hash can never match a login attempt.
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Internal("failed to hash placeholder password", err)
		}

		user = &models.User{
			Username:     profile.Name,
			Email:        foldEmail(profile.Email),
			PasswordHash: string(hash),
			GoogleID:     profile.ID,
		}
		if err := s.users.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return nil, apperr.Conflict("account already exists")
			}
			return nil, apperr.Internal("failed to create user", err)
		}
		s.logger.Info("Federated user created", zap.String("user_id", user.ID.Hex()))
	}

	return s.tokenResponse(user)
}

func (s *AuthService) fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	resp, err := s.oauth.Client(ctx, token).Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Authenticate resolves a bearer token to a user.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	userID, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to look up user", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("unknown user")
	}
	return user, nil
}

func (s *AuthService) parseToken(tokenString string) (primitive.ObjectID, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return primitive.NilObjectID, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}

	sub, _ := claims["sub"].(string)
	userID, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return primitive.NilObjectID, apperr.Unauthorized("invalid token subject")
	}
	return userID, nil
}

func (s *AuthService) tokenResponse(user *models.User) (*AuthResponse, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.Hex(),
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperr.Internal("failed to sign token", err)
	}

	return &AuthResponse{
		ID:       user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
		Token:    signed,
	}, nil
}

func foldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

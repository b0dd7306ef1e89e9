package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/openshelf/openshelf-backend/internal/apperr"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/requestdata"
)

// AuthService resolves caller identity. The circulation engine itself only
// ever consumes the privileged flag derived from the role claim; everything
// else here is collaborator plumbing.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	profileRepo  repos.ProfileRepo
	memberRepo   repos.MemberRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	profileRepo repos.ProfileRepo,
	memberRepo repos.MemberRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	serviceLog := baseLog.With("service", "AuthService")
	return &authService{
		db:           db,
		log:          serviceLog,
		profileRepo:  profileRepo,
		memberRepo:   memberRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", apperr.Validation("email and password are required")
	}

	profile, err := as.profileRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return "", fmt.Errorf("loading profile: %w", err)
	}
	if profile == nil {
		return "", apperr.New(401, "UNAUTHORIZED", fmt.Errorf("invalid credentials"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(password)); err != nil {
		return "", apperr.New(401, "UNAUTHORIZED", fmt.Errorf("invalid credentials"))
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  profile.ID.String(),
		"role": profile.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(as.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	as.log.Debug("Login succeeded", "profile_id", profile.ID, "role", profile.Role)
	return signed, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return ctx, fmt.Errorf("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ctx, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	profileID, err := uuid.Parse(sub)
	if err != nil {
		return ctx, fmt.Errorf("invalid subject claim")
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		ProfileID:   profileID,
		Role:        role,
	}
	// Member callers also carry their member id so handlers can scope
	// self-service operations without another lookup.
	if member, err := as.memberRepo.GetByProfileID(ctx, nil, profileID); err == nil && member != nil {
		rd.MemberID = member.ID
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

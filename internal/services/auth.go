package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/asset-registry/internal/platform/ctxutil"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

// ServiceClaims identify a resource manager. Sid becomes the caller id that
// locks and operations are attributed to.
type ServiceClaims struct {
	Sid  string `json:"sid"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	IssueToken(sid, role string, ttl time.Duration) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey string
	issuer       string
}

func NewAuthService(baseLog *logger.Logger, jwtSecretKey string) AuthService {
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		jwtSecretKey: jwtSecretKey,
		issuer:       "asset-registry",
	}
}

func allowedRole(role string) bool {
	return role == ctxutil.RoleService || role == ctxutil.RoleGM
}

func (as *authService) IssueToken(sid, role string, ttl time.Duration) (string, error) {
	sid = strings.TrimSpace(sid)
	role = strings.ToUpper(strings.TrimSpace(role))
	if sid == "" {
		return "", fmt.Errorf("sid required")
	}
	if !allowedRole(role) {
		return "", fmt.Errorf("role %q not allowed", role)
	}
	if as.jwtSecretKey == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}
	now := time.Now()
	claims := ServiceClaims{
		Sid:  sid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sid,
			Issuer:   as.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	if as.jwtSecretKey == "" {
		return ctx, fmt.Errorf("jwt secret not configured")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*ServiceClaims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	sid := strings.TrimSpace(claims.Sid)
	if sid == "" {
		return ctx, fmt.Errorf("token has no sid")
	}
	if !allowedRole(claims.Role) {
		as.log.Warn("token role rejected", "sid", sid, "role", claims.Role)
		return ctx, fmt.Errorf("role %q not allowed", claims.Role)
	}
	return ctxutil.WithCallerData(ctx, &ctxutil.CallerData{CallerID: sid, Role: claims.Role}), nil
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"railbooker/config"
	"railbooker/models"
)

// AuthService owns the session token and its validity window. Stages ask for
// a token at their start and never cache it themselves; refresh is
// synchronous, so a returned token is always outside the safety margin.
type AuthService struct {
	gw  Gateway
	cfg *config.Config
	now func() time.Time
	log *slog.Logger

	token models.AuthToken
}

func NewAuthService(gw Gateway, cfg *config.Config, log *slog.Logger) *AuthService {
	return &AuthService{gw: gw, cfg: cfg, now: time.Now, log: log}
}

// Token returns a token valid for at least the configured margin, logging in
// again when the cached one is missing, expiring, or force is set.
func (s *AuthService) Token(ctx context.Context, force bool) (models.AuthToken, error) {
	if !force && s.token.ValidFor(s.cfg.TokenMargin, s.now()) {
		return s.token, nil
	}

	s.log.Info("logging in", "mobile", s.cfg.MobileNumber)
	token, err := s.gw.Login(ctx, s.cfg.MobileNumber, s.cfg.Password)
	if err != nil {
		return models.AuthToken{}, err
	}

	if token.ExpiresAt.IsZero() {
		token.ExpiresAt = s.expiryOf(token.Token)
	}
	s.token = token

	s.log.Debug("token obtained", "expires_at", token.ExpiresAt)
	return token, nil
}

// expiryOf reads the exp claim when the token is a JWT. The signature is the
// remote service's concern, so the parse is deliberately unverified; tokens
// without a usable claim get the configured lifetime.
func (s *AuthService) expiryOf(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return s.now().Add(s.cfg.TokenLifetime)
}

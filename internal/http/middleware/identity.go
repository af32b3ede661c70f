package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/http/response"
	"github.com/yungbote/readiness-backend/internal/platform/ctxutil"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	Tier  string `json:"tier,omitempty"`
	jwt.RegisteredClaims
}

type IdentityMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewIdentityMiddleware(log *logger.Logger, secret string) *IdentityMiddleware {
	return &IdentityMiddleware{
		log:    log.With("Middleware", "IdentityMiddleware"),
		secret: []byte(strings.TrimSpace(secret)),
	}
}

// Optional attaches an Identity when the request carries a valid bearer
// token. Requests without one stay anonymous; a bad token is rejected.
func (im *IdentityMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, present := bearerToken(c.GetHeader("Authorization"))
		if !present {
			c.Next()
			return
		}
		id, err := im.parse(raw)
		if err != nil {
			im.log.Debug("rejected bearer token", "error", err)
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("invalid bearer token"))
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// Required rejects the request unless it carries a verified identity,
// either attached earlier by Optional or from its own bearer token.
func (im *IdentityMiddleware) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ctxutil.GetIdentity(c.Request.Context()) != nil {
			c.Next()
			return
		}
		raw, present := bearerToken(c.GetHeader("Authorization"))
		if !present {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("authentication required"))
			return
		}
		id, err := im.parse(raw)
		if err != nil {
			im.log.Debug("rejected bearer token", "error", err)
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errors.New("invalid bearer token"))
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func (im *IdentityMiddleware) parse(raw string) (*ctxutil.Identity, error) {
	if len(im.secret) == 0 {
		return nil, errors.New("identity tokens are not configured")
	}
	token, err := jwt.ParseWithClaims(raw, &IdentityClaims{}, func(t *jwt.Token) (interface{}, error) {
		return im.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	tier := assessment.TierFree
	if strings.TrimSpace(claims.Tier) != "" {
		parsed, ok := assessment.ParseTier(claims.Tier)
		if !ok {
			return nil, fmt.Errorf("unknown tier %q", claims.Tier)
		}
		tier = parsed
	}
	return &ctxutil.Identity{
		Subject: claims.Subject,
		Email:   strings.TrimSpace(claims.Email),
		Tier:    tier,
	}, nil
}

// SignIdentityToken issues an HS256 token for id that expires after ttl.
func SignIdentityToken(secret string, id ctxutil.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Email: id.Email,
		Tier:  string(id.Tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(strings.TrimSpace(secret)))
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:]), true
	}
	// A non-bearer Authorization header is still a credential we cannot honour.
	return "", true
}

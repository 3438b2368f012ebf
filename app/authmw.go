package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/session"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AppSessionCookie = "app_session"

	CtxUserID   = "userID"
	CtxUserRole = "userRole"
)

// Claims is the bearer token payload issued by the identity service.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

type SessionLookup interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

// IssueToken signs an HS256 token for userID.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthRequired resolves the caller from a bearer token or the session
// cookie, then loads the user so the role always comes from the database.
func AuthRequired(sessions SessionLookup, users UserLookup, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var uid, sid string

		if h := c.GetHeader("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "authorization must be 'Bearer <token>'"})
				return
			}
			claims, err := ParseToken(secret, parts[1])
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid or expired token"})
				return
			}
			uid = claims.UserID
		} else {
			ck, err := c.Request.Cookie(AppSessionCookie)
			if err != nil || ck.Value == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
				return
			}
			as, err := sessions.Get(ctx, ck.Value)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
				return
			}
			uid, sid = as.UserID, ck.Value
		}

		u, err := users.FindUserByID(ctx, uid)
		if errors.Is(err, models.ErrUserNotFound) {
			if sid != "" {
				_ = sessions.Delete(ctx, sid)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if err != nil {
			log.Printf("auth: load user %s: %v", uid, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal error"})
			return
		}
		c.Set(CtxUserID, u.ID)
		c.Set(CtxUserRole, u.Role)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(CtxUserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
	}
}

// ActorFrom returns the caller set by AuthRequired.
func ActorFrom(c *gin.Context) models.Actor {
	id := c.GetString(CtxUserID)
	role, _ := c.Get(CtxUserRole)
	r, _ := role.(models.Role)
	return models.Actor{ID: id, Role: r}
}

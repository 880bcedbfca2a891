package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie carries the session token, as on a real nG1.
const SessionCookie = "NSSESSIONID"

const sessionTTL = 8 * time.Hour

// Claims is the payload of every session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// sessions issues and checks NSSESSIONID tokens. Tokens are stateless JWTs;
// closing a session revokes its id until the token would have expired.
type sessions struct {
	secret   []byte
	user     string
	passHash []byte

	mu      sync.Mutex
	revoked map[string]time.Time
}

func newSessions(secret string) *sessions {
	return &sessions{secret: []byte(secret), revoked: make(map[string]time.Time)}
}

// setCredentials stores the bcrypt hash of the accepted password.
func (s *sessions) setCredentials(user, pass string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.user, s.passHash = user, hash
	return nil
}

func (s *sessions) checkPassword(user, pass string) bool {
	if s.passHash == nil || user != s.user {
		return false
	}
	return bcrypt.CompareHashAndPassword(s.passHash, []byte(pass)) == nil
}

// issue creates a signed HS256 token for user.
func (s *sessions) issue(user string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "ng1-emulator",
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

var errRevoked = errors.New("session closed")

func (s *sessions) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revoked[claims.ID]; ok {
		return nil, errRevoked
	}
	return claims, nil
}

func (s *sessions) revoke(c *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, until := range s.revoked {
		if until.Before(now) {
			delete(s.revoked, id)
		}
	}
	until := now.Add(sessionTTL)
	if c.ExpiresAt != nil {
		until = c.ExpiresAt.Time
	}
	s.revoked[c.ID] = until
}

// middleware rejects requests without a live NSSESSIONID cookie and stores
// the claims in the Gin context as "session".
func (s *sessions) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookie)
		if err != nil || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no session"})
			return
		}
		claims, err := s.parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		c.Set("session", claims)
		c.Next()
	}
}

// handleOpen starts a session. Basic auth credentials are checked against
// the configured user; a request already carrying a valid cookie (token
// auth) is accepted as is.
//
//	POST /ng1api/rest-sessions
func (s *sessions) handleOpen(c *gin.Context) {
	if raw, err := c.Cookie(SessionCookie); err == nil && raw != "" {
		if _, err := s.parse(raw); err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
	}

	user, pass, ok := c.Request.BasicAuth()
	if !ok || !s.checkPassword(user, pass) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := s.issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session"})
		return
	}
	c.SetCookie(SessionCookie, token, int(sessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleClose revokes the caller's session.
//
//	POST /ng1api/rest-sessions/close
func (s *sessions) handleClose(c *gin.Context) {
	if claims, ok := c.Get("session"); ok {
		s.revoke(claims.(*Claims))
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

package authorization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"thumbzilla_back/cache"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionCookieName is the cookie carrying the opaque session token.
	SessionCookieName = "thumbzilla_session"

	sessionTTL       = 7 * 24 * time.Hour
	sessionKeyPrefix = "session:"
	sessionOpTimeout = 2 * time.Second
)

// ErrSessionNotFound indicates the token does not resolve to a stored session.
var ErrSessionNotFound = errors.New("authorization: session not found")

// Session is the server-held state keyed by the cookie token.
type Session struct {
	UserID   uint64 `json:"user_id"`
	LoggedIn bool   `json:"logged_in"`
}

// SessionStore persists sessions keyed by opaque tokens.
type SessionStore interface {
	Create(ctx context.Context, session Session) (string, error)
	Get(ctx context.Context, token string) (*Session, error)
	Destroy(ctx context.Context, token string) error
}

// NewSessionStoreFromEnv returns a Redis backed store when REDIS_ADDR is
// configured and an in-process store otherwise.
func NewSessionStoreFromEnv() (SessionStore, error) {
	client, err := cache.GetRedisClient()
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Printf("authorization: REDIS_ADDR not set, sessions held in process memory")
		return NewMemorySessionStore(), nil
	}
	return NewRedisSessionStore(client), nil
}

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps the given Redis client as a SessionStore.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Create(ctx context.Context, session Session) (string, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("authorization: marshal session: %w", err)
	}

	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, sessionKeyPrefix+token, payload, sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("authorization: store session: %w", err)
	}
	return token, nil
}

func (s *redisSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("authorization: load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("authorization: decode session: %w", err)
	}
	return &session, nil
}

func (s *redisSessionStore) Destroy(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sessionOpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("authorization: destroy session: %w", err)
	}
	return nil
}

// MemorySessionStore keeps sessions in process memory. Used when Redis is not
// configured and by tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemorySessionStore returns an empty in-process session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, session Session) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()
	return token, nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemorySessionStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// crossSiteCookies reports whether the frontend runs on a different origin,
// which requires SameSite=None together with the Secure attribute.
func crossSiteCookies() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("COOKIE_CROSS_SITE")), "true")
}

func setSessionCookie(c *gin.Context, token string) {
	secure := crossSiteCookies()
	if secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(SessionCookieName, token, int(sessionTTL.Seconds()), "/", "", secure, true)
}

func clearSessionCookie(c *gin.Context) {
	secure := crossSiteCookies()
	if secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(SessionCookieName, "", -1, "/", "", secure, true)
}

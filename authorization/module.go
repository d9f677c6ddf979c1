package authorization

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("authorization: email already registered")
	ErrInvalidCredentials = errors.New("authorization: invalid email or password")
)

// invalidCredentialsMessage is shared by the unknown-email and wrong-password
// paths so login responses carry no account-enumeration signal.
const invalidCredentialsMessage = "Invalid email or password"

// Module wires together the session store and backing user service.
type Module struct {
	db       *gorm.DB
	users    *UserStore
	service  *AuthService
	sessions SessionStore
}

// RegisterRoutes bootstraps the authentication endpoints under /api/auth.
func RegisterRoutes(router *gin.Engine) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("authorization: migrate models: %w", err)
	}

	sessions, err := NewSessionStoreFromEnv()
	if err != nil {
		return nil, err
	}

	module := NewModule(db, sessions)
	module.Mount(router)
	return module, nil
}

// NewModule assembles the auth module from explicit dependencies.
func NewModule(db *gorm.DB, sessions SessionStore) *Module {
	users := &UserStore{db: db}
	return &Module{
		db:       db,
		users:    users,
		service:  &AuthService{users: users},
		sessions: sessions,
	}
}

// Mount attaches the auth routes to the given router.
func (m *Module) Mount(router gin.IRouter) {
	group := router.Group("/api/auth")
	group.POST("/register", m.handleRegister)
	group.POST("/login", m.handleLogin)

	secured := group.Group("")
	secured.Use(m.Guard().RequireAuthenticated())
	secured.POST("/logout", m.handleLogout)
	secured.GET("/verify", m.handleVerify)
}

// RegisterRequest captures the payload for user registration.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the expected payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (m *Module) handleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request payload"})
		return
	}

	ctx := c.Request.Context()
	user, err := m.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to register"})
		}
		return
	}

	if !m.establishSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User registered successfully",
		"user":    userSummary(user),
	})
}

func (m *Module) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request payload"})
		return
	}

	ctx := c.Request.Context()
	user, err := m.service.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"message": invalidCredentialsMessage})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to log in"})
		return
	}

	if !m.establishSession(c, user.ID) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    userSummary(user),
	})
}

func (m *Module) handleLogout(c *gin.Context) {
	token := CurrentSessionToken(c)
	if err := m.sessions.Destroy(c.Request.Context(), token); err != nil {
		log.Printf("authorization: destroy session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error logging out"})
		return
	}

	clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (m *Module) handleVerify(c *gin.Context) {
	userID := CurrentUserID(c)

	user, err := m.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userSummary(user)})
}

// establishSession stores a logged-in session and sets the cookie. Writes an
// error response and returns false on failure.
func (m *Module) establishSession(c *gin.Context, userID uint64) bool {
	token, err := m.sessions.Create(c.Request.Context(), Session{UserID: userID, LoggedIn: true})
	if err != nil {
		log.Printf("authorization: create session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to establish session"})
		return false
	}
	setSessionCookie(c, token)
	return true
}

// AuthService handles registration and credential checks.
type AuthService struct {
	users *UserStore
}

// Register creates a new account with a salted password hash. The plaintext
// password is never stored.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if existing, err := s.users.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("authorization: look up email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("authorization: hash password: %w", err)
	}

	user := &User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("authorization: create user: %w", err)
	}

	return user, nil
}

// Authenticate validates the given credentials. Unknown email and hash
// mismatch both map to ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authorization: authenticate user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// UserStore provides data access helpers backed by GORM.
type UserStore struct {
	db *gorm.DB
}

// FindByID loads a user by primary key.
func (s *UserStore) FindByID(ctx context.Context, id uint64) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// FindByEmail loads a user by unique email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// Create inserts a new user record.
func (s *UserStore) Create(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// User represents an application account.
type User struct {
	ID           uint64 `gorm:"primaryKey"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func userSummary(user *User) gin.H {
	if user == nil {
		return gin.H{}
	}
	return gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	}
}

package authorization

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*Module, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}))

	module := NewModule(db, NewMemorySessionStore())
	router := gin.New()
	module.Mount(router)
	return module, router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func firstSessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	return nil
}

const registerBody = `{"name":"Ana","email":"ana@example.com","password":"hunter22"}`

func TestRegisterEstablishesSession(t *testing.T) {
	_, router := newTestServer(t)

	rec := postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := decodeJSON(t, rec)
	user := payload["user"].(map[string]any)
	assert.Equal(t, "Ana", user["name"])
	assert.Equal(t, "ana@example.com", user["email"])
	assert.NotContains(t, user, "password")

	cookie := firstSessionCookie(rec)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	module, router := newTestServer(t)

	rec := postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decodeJSON(t, rec)["message"])

	var count int64
	require.NoError(t, module.db.Model(&User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterNeverStoresPlaintextPassword(t *testing.T) {
	module, router := newTestServer(t)

	rec := postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var user User
	require.NoError(t, module.db.First(&user).Error)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestLoginUniformInvalidCredentialsMessage(t *testing.T) {
	_, router := newTestServer(t)

	rec := postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusOK, rec.Code)

	wrongPassword := postJSON(t, router, "/api/auth/login", `{"email":"ana@example.com","password":"wrong"}`)
	unknownEmail := postJSON(t, router, "/api/auth/login", `{"email":"nobody@example.com","password":"hunter22"}`)

	require.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	require.Equal(t, http.StatusBadRequest, unknownEmail.Code)
	assert.Equal(t, decodeJSON(t, wrongPassword)["message"], decodeJSON(t, unknownEmail)["message"])
}

func TestLoginSuccess(t *testing.T) {
	_, router := newTestServer(t)

	rec := postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, router, "/api/auth/login", `{"email":"ana@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", decodeJSON(t, rec)["message"])
	require.NotNil(t, firstSessionCookie(rec))
}

func TestVerifyAndLogoutFlow(t *testing.T) {
	_, router := newTestServer(t)

	rec := postJSON(t, router, "/api/auth/register", registerBody)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := firstSessionCookie(rec)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.AddCookie(cookie)
	verifyRec := httptest.NewRecorder()
	router.ServeHTTP(verifyRec, req)
	require.Equal(t, http.StatusOK, verifyRec.Code)
	user := decodeJSON(t, verifyRec)["user"].(map[string]any)
	assert.Equal(t, "ana@example.com", user["email"])

	logoutRec := postJSON(t, router, "/api/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, logoutRec.Code)

	// The destroyed session no longer passes the guard.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.AddCookie(cookie)
	verifyRec = httptest.NewRecorder()
	router.ServeHTTP(verifyRec, req)
	assert.Equal(t, http.StatusUnauthorized, verifyRec.Code)
}

func TestVerifyWithDeletedUser(t *testing.T) {
	module, router := newTestServer(t)

	token, err := module.sessions.Create(context.Background(), Session{UserID: 42, LoggedIn: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user", decodeJSON(t, rec)["message"])
}

func TestGuardRejectsMissingSession(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bogus-token"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	token, err := store.Create(ctx, Session{UserID: 5, LoggedIn: true})
	require.NoError(t, err)

	session, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.EqualValues(t, 5, session.UserID)
	assert.True(t, session.LoggedIn)

	require.NoError(t, store.Destroy(ctx, token))
	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/vidtube-org/vidtube/backend/internal/middleware"
)

type wireResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newHTTPEnv(t *testing.T) (*testEnv, http.Handler) {
	t.Helper()
	env := newTestEnv(t)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(env.svc, log, false)
	requireAuth := middleware.RequireAuth(env.access, env.users)

	r := chi.NewRouter()
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)
		r.With(requireAuth).Post("/logout", h.Logout)
		r.With(requireAuth).Get("/profile", h.Profile)
	})
	return env, r
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeWire(t *testing.T, rec *httptest.ResponseRecorder) wireResponse {
	t.Helper()
	var resp wireResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHTTPLogin_Success(t *testing.T) {
	env, handler := newHTTPEnv(t)
	seeded := seedUser(t, env.users, "ana", "ana@example.com", "Secret123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "ana", "password": "Secret123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeWire(t, rec)
	require.True(t, resp.Success)

	var data struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.AccessToken)
	require.NotEmpty(t, data.RefreshToken)
	require.Equal(t, seeded.ID.Hex(), data.User.ID)

	// Both tokens double as http-only cookies.
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		require.NotEmpty(t, c.Value)
		require.True(t, c.HttpOnly)
	}

	// The body must never leak the hash or the stored refresh slot.
	require.NotContains(t, rec.Body.String(), `"password"`)
}

func TestHTTPLogin_WrongPassword(t *testing.T) {
	env, handler := newHTTPEnv(t)
	seedUser(t, env.users, "ana", "ana@example.com", "Secret123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "ana", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, decodeWire(t, rec).Success)
}

func TestHTTPLogin_UnknownAccount(t *testing.T) {
	_, handler := newHTTPEnv(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "ghost@example.com", "password": "x"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func signupForm(t *testing.T, fields map[string]string, withAvatar, withCover bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withAvatar {
		part, err := mw.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("fake-png-bytes"))
		require.NoError(t, err)
	}
	if withCover {
		part, err := mw.CreateFormFile("coverImage", "cover.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("fake-jpg-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHTTPSignup_Success(t *testing.T) {
	_, handler := newHTTPEnv(t)

	body, contentType := signupForm(t, map[string]string{
		"username": "Bob",
		"email":    "bob@example.com",
		"fullName": "Bob Marlin",
		"password": "Hunter22",
	}, true, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeWire(t, rec)
	require.True(t, resp.Success)

	var created struct {
		Username   string `json:"username"`
		Avatar     string `json:"avatar"`
		CoverImage string `json:"coverImage"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	require.Equal(t, "bob", created.Username)
	require.NotEmpty(t, created.Avatar)
	require.NotEmpty(t, created.CoverImage)
}

func TestHTTPSignup_MissingAvatar(t *testing.T) {
	_, handler := newHTTPEnv(t)

	body, contentType := signupForm(t, map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"fullName": "Bob Marlin",
		"password": "Hunter22",
	}, false, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeWire(t, rec).Message, "avatar")
}

func TestHTTPSignup_DuplicateEmail(t *testing.T) {
	_, handler := newHTTPEnv(t)

	fields := map[string]string{
		"username": "bob",
		"email":    "bob@example.com",
		"fullName": "Bob Marlin",
		"password": "Hunter22",
	}

	body, contentType := signupForm(t, fields, true, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	fields["username"] = "bobby"
	body, contentType = signupForm(t, fields, true, false)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func loginFor(t *testing.T, handler http.Handler, username, password string) (access, refresh string) {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(decodeWire(t, rec).Data, &data))
	return data.AccessToken, data.RefreshToken
}

func TestHTTPRefresh_CookieRotatesAndRejectsReplay(t *testing.T) {
	env, handler := newHTTPEnv(t)
	seedUser(t, env.users, "ana", "ana@example.com", "Secret123")
	_, refresh := loginFor(t, handler, "ana", "Secret123")

	withCookie := func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: refresh})
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/refresh-token", nil, withCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(decodeWire(t, rec).Data, &data))
	require.NotEmpty(t, data.AccessToken)
	require.NotEqual(t, refresh, data.RefreshToken)

	// Replaying the superseded cookie is a uniform 401.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users/refresh-token", nil, withCookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPRefresh_BodyFallback(t *testing.T) {
	env, handler := newHTTPEnv(t)
	seedUser(t, env.users, "ana", "ana@example.com", "Secret123")
	_, refresh := loginFor(t, handler, "ana", "Secret123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/refresh-token",
		map[string]string{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPRefresh_MissingToken(t *testing.T) {
	_, handler := newHTTPEnv(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/refresh-token", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "unauthorized request", decodeWire(t, rec).Message)
}

func TestHTTPLogout_ClearsSessionAndCookies(t *testing.T) {
	env, handler := newHTTPEnv(t)
	seeded := seedUser(t, env.users, "ana", "ana@example.com", "Secret123")
	access, refresh := loginFor(t, handler, "ana", "Secret123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/logout", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, env.users.storedRefreshToken(seeded.ID.Hex()))

	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	}

	// The cleared slot kills the refresh path.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users/refresh-token",
		map[string]string{"refreshToken": refresh}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPProfile(t *testing.T) {
	env, handler := newHTTPEnv(t)
	seedUser(t, env.users, "ana", "ana@example.com", "Secret123")
	access, _ := loginFor(t, handler, "ana", "Secret123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/users/profile", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+access)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `"username":"ana"`))

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/profile", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Keeps the compiler honest about the fake satisfying both interfaces.
var (
	_ UserStore             = (*fakeUsers)(nil)
	_ middleware.UserLoader = (*fakeUsers)(nil)
)

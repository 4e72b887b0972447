package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newSessionEngine() *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/whoami", func(c *gin.Context) {
		owner, err := LoadSession(c).Owner()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		user := ""
		if owner.UserID != nil {
			user = owner.AccountName
		}
		c.JSON(http.StatusOK, gin.H{"sid": owner.SessionID, "user": user})
	})
	r.GET("/login", func(c *gin.Context) {
		if err := LoadSession(c).LoginUser(7, "alice"); err != nil {
			c.String(http.StatusInternalServerError, err.Error())
		}
	})
	return r
}

func get(r http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSession_AnonymousIdIsStable(t *testing.T) {
	r := newSessionEngine()
	first := get(r, "/whoami", nil)
	cookies := first.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie issued")
	}
	second := get(r, "/whoami", cookies)
	if first.Body.String() != second.Body.String() {
		t.Errorf("session id changed: %s vs %s", first.Body, second.Body)
	}
	other := get(r, "/whoami", nil)
	if other.Body.String() == first.Body.String() {
		t.Error("two clients got the same session id")
	}
}

func TestSession_LoggedInUser(t *testing.T) {
	r := newSessionEngine()
	login := get(r, "/login", nil)
	w := get(r, "/whoami", login.Result().Cookies())
	if body := w.Body.String(); body == "" || !strings.Contains(body, `"user":"alice"`) {
		t.Errorf("whoami = %s", body)
	}
}

func TestToUint64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want uint64
		ok   bool
	}{
		{uint64(3), 3, true},
		{5, 5, true},
		{int64(-1), 0, false},
		{"7", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := toUint64(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("toUint64(%v) = %d, %v", tt.in, got, ok)
		}
	}
}

func TestRouter_AdminToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"valid", "s3cret", "Bearer s3cret", http.StatusOK},
		{"wrong", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"not bearer", "s3cret", "s3cret", http.StatusUnauthorized},
		{"admin disabled", "", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			router := Router{Base: engine, Token: tt.token}
			router.GET("/admin/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword("hunter3", hash) {
		t.Error("CheckPassword accepted the wrong password")
	}
}

func TestGenerateAPIKey(t *testing.T) {
	a, err := GenerateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateAPIKey()
	if a == b {
		t.Error("two generated keys are equal")
	}
	if !strings.HasPrefix(a, "timeslice_") || len(a) != len("timeslice_")+2*apiKeyBytes {
		t.Errorf("GenerateAPIKey() = %q, want timeslice_ plus %d hex chars", a, 2*apiKeyBytes)
	}
}

func TestGeneratedAPIKeyHashes(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	if len(key) > 72 {
		t.Fatalf("len(key) = %d, want <= 72 for bcrypt", len(key))
	}
	hash, err := HashPassword(key)
	if err != nil {
		t.Fatalf("HashPassword(key) error = %v", err)
	}
	if !CheckPassword(key, hash) {
		t.Error("CheckPassword rejected the generated key")
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, sm *scs.SessionManager, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	sm.LoadAndSave(h).ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthOpenWithoutPassword(t *testing.T) {
	sm := scs.New()
	m := NewMiddleware("", "", sm)
	rec := serve(m.RequireAuth(okHandler), sm, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAuth(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/", http.StatusSeeOther},
		{"/api/histogram", http.StatusUnauthorized},
		{"/data.json", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		sm := scs.New()
		m := NewMiddleware(hash, "", sm)
		rec := serve(m.RequireAuth(okHandler), sm, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestLoginThenRequireAuth(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	sm := scs.New()
	m := NewMiddleware(hash, "", sm)

	login := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := m.Login(r, r.FormValue("password"))
		if err != nil || !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	bad := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=nope"))
	bad.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rec := serve(login, sm, bad); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	good := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("password=secret"))
	good.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(login, sm, good)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusOK)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login set no session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	if rec := serve(m.RequireAuth(okHandler), sm, req); rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	if err != nil {
		t.Fatal(err)
	}
	keyHash, err := HashPassword(key)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"header", "X-API-Key", key, http.StatusOK},
		{"bearer", "Authorization", "Bearer " + key, http.StatusOK},
		{"wrong", "X-API-Key", "timeslice_nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := scs.New()
			m := NewMiddleware("", keyHash, sm)
			req := httptest.NewRequest(http.MethodPost, "/api/rebuild", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if rec := serve(m.RequireAPIKey(okHandler), sm, req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

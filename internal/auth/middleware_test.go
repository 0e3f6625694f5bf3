package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLocalhostBypass(t *testing.T) {
	mw := Middleware(NewKeyring(true, nil))

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := FromContext(r.Context())
		if !ok || info.Mode != ModeLocalhost {
			t.Fatalf("expected localhost auth mode")
		}
		if !info.CanAccess("anyone") {
			t.Fatalf("localhost should access any owner")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/agenda/ana/items", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestLocalhostBypassDisabled(t *testing.T) {
	mw := Middleware(NewKeyring(false, map[string]string{"secret": "ana"}))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/setores", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestNonLocalhostRequiresBearer(t *testing.T) {
	mw := Middleware(NewKeyring(true, map[string]string{"secret": "ana"}))

	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := FromContext(r.Context())
		if !ok || info.Owner != "ana" || info.Mode != ModeAPIKey {
			t.Fatalf("expected apikey auth info")
		}
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", "Bearer wrong", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"valid", "Bearer secret", http.StatusOK},
		{"lowercase scheme", "bearer secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/setores", nil)
			req.RemoteAddr = "203.0.113.10:9999"
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestIsLocalRequestForwardedFor(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		xff    []string
		want   bool
	}{
		{"direct loopback", "127.0.0.1:1234", nil, true},
		{"direct remote", "203.0.113.9:4000", nil, false},
		{"remote claims loopback", "203.0.113.9:4000", []string{"127.0.0.1"}, false},
		{"local proxy, remote client", "127.0.0.1:1234", []string{"198.51.100.7"}, false},
		{"local proxy, spoofed first hop", "127.0.0.1:1234", []string{"127.0.0.1, 198.51.100.7"}, false},
		{"local proxy, repeated header", "127.0.0.1:1234", []string{"127.0.0.1", "198.51.100.7"}, false},
		{"local proxy, local client", "127.0.0.1:1234", []string{"::1"}, true},
		{"unix socket", "@", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for _, v := range tc.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if got := isLocalRequest(req); got != tc.want {
				t.Fatalf("isLocalRequest = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSpoofedForwardedForCannotReadAgenda(t *testing.T) {
	mw := Middleware(NewKeyring(true, map[string]string{"secret": "ana"}))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/agenda/ana/items", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestInfoCanAccess(t *testing.T) {
	info := Info{Mode: ModeAPIKey, Owner: "ana"}
	if !info.CanAccess("ana") {
		t.Fatal("owner should access own agenda")
	}
	if info.CanAccess("bruno") {
		t.Fatal("owner must not access another agenda")
	}
	if (Info{Mode: ModeAPIKey}).CanAccess("") {
		t.Fatal("empty owner must not match")
	}
}

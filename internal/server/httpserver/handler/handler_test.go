package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
)

type call struct {
	method string
	args   []string
}

// fakeService records calls and answers OK with the joined arguments.
type fakeService struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeService) record(method string, args ...string) *protocol.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, args: args})
	return protocol.OK(args...)
}

func (f *fakeService) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeService) NewClient(_ context.Context, owner string) *protocol.Response {
	return f.record("NewClient", owner)
}

func (f *fakeService) RegisterApp(_ context.Context, repo, body string) *protocol.Response {
	return f.record("RegisterApp", repo, body)
}

func (f *fakeService) OpenStorage(_ context.Context, app, id string) *protocol.Response {
	return f.record("OpenStorage", app, id)
}

func (f *fakeService) StoreThing(_ context.Context, st, id, body string) *protocol.Response {
	return f.record("StoreThing", st, id, body)
}

func (f *fakeService) ThingExists(_ context.Context, st, id string) *protocol.Response {
	return f.record("ThingExists", st, id)
}

func (f *fakeService) GetThingModifiedOn(_ context.Context, st, id string) *protocol.Response {
	return f.record("GetThingModifiedOn", st, id)
}

func (f *fakeService) GetThingCopy(_ context.Context, st, id string) *protocol.Response {
	return f.record("GetThingCopy", st, id)
}

func (f *fakeService) DiscardThing(_ context.Context, st, id string) *protocol.Response {
	return f.record("DiscardThing", st, id)
}

func (f *fakeService) FindThingIDs(_ context.Context, st, pattern string) *protocol.Response {
	return f.record("FindThingIDs", st, pattern)
}

func do(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) *protocol.Response {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	resp, err := protocol.DecodeResponse(rec.Body.String())
	if err != nil {
		t.Fatalf("DecodeResponse(%q) error = %v", rec.Body.String(), err)
	}
	return resp
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantMethod string
		wantArgs   []string
	}{
		{"newclient", http.MethodGet, "/api/storage/newclient?owner=alice", "", "NewClient", []string{"alice"}},
		{"registerapp", http.MethodPost, "/api/storage/registerapp/tvrp-1", " 'abc' \n", "RegisterApp", []string{"tvrp-1", "'abc'"}},
		{"open", http.MethodGet, "/api/storage/open/tvat_a,notes", "", "OpenStorage", []string{"tvat_a", "notes"}},
		{"store", http.MethodPut, "/api/storage/store/tvst_s,thing%20one", "payload", "StoreThing", []string{"tvst_s", "thing one", "payload"}},
		{"exists", http.MethodGet, "/api/storage/exists/tvst_s,t1", "", "ThingExists", []string{"tvst_s", "t1"}},
		{"getmodifiedon", http.MethodGet, "/api/storage/getmodifiedon/tvst_s,t1", "", "GetThingModifiedOn", []string{"tvst_s", "t1"}},
		{"getacopy", http.MethodGet, "/api/storage/getacopy/tvst_s,t1", "", "GetThingCopy", []string{"tvst_s", "t1"}},
		{"discard", http.MethodDelete, "/api/storage/discard/tvst_s,t1", "", "DiscardThing", []string{"tvst_s", "t1"}},
		{"findids", http.MethodGet, "/api/storage/findids/tvst_s,%5Ea%2C%5Bb-c%5D", "", "FindThingIDs", []string{"tvst_s", "^a,[b-c]"}},
		{"findids blank", http.MethodGet, "/api/storage/findids/tvst_s,%20", "", "FindThingIDs", []string{"tvst_s", " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			h := New(svc, Options{})

			resp := decode(t, do(t, h, tt.method, tt.target, tt.body, nil))
			if !resp.OK {
				t.Fatalf("response = %v, want OK", resp)
			}
			got := svc.last()
			if got.method != tt.wantMethod {
				t.Errorf("called %q, want %q", got.method, tt.wantMethod)
			}
			if strings.Join(got.args, "|") != strings.Join(tt.wantArgs, "|") {
				t.Errorf("args = %q, want %q", got.args, tt.wantArgs)
			}
		})
	}
}

func TestBadArguments(t *testing.T) {
	tests := []struct {
		method, target string
		wantKind       domain.ErrorKind
	}{
		{http.MethodGet, "/api/storage/open/tvat_only", domain.KindOpenStorageFailed},
		{http.MethodPut, "/api/storage/store/tvst_only", domain.KindThingOperationFailed},
		{http.MethodGet, "/api/storage/exists/tvst_only", domain.KindThingOperationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			svc := &fakeService{}
			resp := decode(t, do(t, New(svc, Options{}), tt.method, tt.target, "x", nil))
			if resp.OK || resp.Code != tt.wantKind {
				t.Errorf("response = %v, want ERROR %v", resp, tt.wantKind)
			}
			if len(svc.calls) != 0 {
				t.Errorf("service called: %v", svc.calls)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, New(&fakeService{}, Options{}), http.MethodGet, "/api/storage/store/tvst_s,t1", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestNewClient_AdminToken(t *testing.T) {
	h := New(&fakeService{}, Options{AdminToken: "s3cret"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"basic", "Basic s3cret", http.StatusUnauthorized},
		{"ok", "Bearer s3cret", http.StatusOK},
		{"lower case scheme", "bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			rec := do(t, h, http.MethodGet, "/api/storage/newclient", "", header)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	svc := &fakeService{}
	h := New(svc, Options{BodyLimit: 8})

	rec := do(t, h, http.MethodPost, "/api/storage/registerapp/tvrp-1", strings.Repeat("x", 64), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Errorf("service called: %v", svc.calls)
	}
}

func TestErrorEnvelopeIsOK(t *testing.T) {
	h := New(&errService{}, Options{})
	resp := decode(t, do(t, h, http.MethodGet, "/api/storage/exists/tvst_s,t1", "", nil))
	if resp.OK || resp.Code != domain.KindIncorrectStorageToken {
		t.Errorf("response = %v, want IncorrectStorageToken", resp)
	}
}

type errService struct{ fakeService }

func (*errService) ThingExists(context.Context, string, string) *protocol.Response {
	return protocol.Error(domain.KindIncorrectStorageToken, domain.ErrIncorrectStorageToken.Message)
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&fakeService{}, Options{}), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Version == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestReady(t *testing.T) {
	var failing error
	h := New(&fakeService{}, Options{Ready: func(context.Context) error { return failing }})

	if rec := do(t, h, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	failing = errors.New("storage: closed")
	rec := do(t, h, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body HealthResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != "storage: closed" {
		t.Errorf("error = %q", body.Error)
	}
}

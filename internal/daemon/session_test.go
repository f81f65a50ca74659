package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestEnsureSessionMintsToken(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/bulk", nil)

	token := ensureSession(recorder, request)
	if _, err := uuid.Parse(token); err != nil {
		t.Fatalf("minted token %q is not a uuid: %v", token, err)
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie {
		t.Fatalf("cookies = %+v, want a single %s cookie", cookies, sessionCookie)
	}
	if cookies[0].Value != token {
		t.Fatal("cookie value should match the returned token")
	}
	if !cookies[0].HttpOnly {
		t.Fatal("session cookie must be http-only")
	}
}

func TestEnsureSessionKeepsExistingToken(t *testing.T) {
	existing := uuid.NewString()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/bulk", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookie, Value: existing})

	token := ensureSession(recorder, request)
	if token != existing {
		t.Fatalf("token = %q, want the existing %q", token, existing)
	}
	if len(recorder.Result().Cookies()) != 0 {
		t.Fatal("a valid session must not be re-issued")
	}
}

func TestEnsureSessionReplacesMalformedToken(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/bulk", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-uuid"})

	token := ensureSession(recorder, request)
	if token == "not-a-uuid" {
		t.Fatal("malformed token must be replaced")
	}
	if _, err := uuid.Parse(token); err != nil {
		t.Fatalf("replacement token %q is not a uuid: %v", token, err)
	}
	if len(recorder.Result().Cookies()) != 1 {
		t.Fatal("replacement token should be set as a cookie")
	}
}

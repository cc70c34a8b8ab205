package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestHandler(t *testing.T) (*env, http.Handler) {
	t.Helper()
	e := newTestEnv(t)
	return e, NewHTTPServer(e.svc, "http://localhost:3000").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if decodeJSON(t, rec)["ok"] != true {
		t.Fatalf("health body = %s", rec.Body.String())
	}
}

func TestPreflightSetsCORSHeaders(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodOptions, "/api/plans", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestPlansRequireAuth(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/plans", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated plans status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/plans", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token plans status = %d", rec.Code)
	}
}

func TestSignUpAndPlanFlow(t *testing.T) {
	_, handler := newTestHandler(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "mika@example.com",
		"password":    "a-long-enough-password",
		"displayName": "Mika",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body=%s", rec.Code, rec.Body.String())
	}
	token := decodeJSON(t, rec)["accessToken"].(string)

	rec = doJSON(t, handler, http.MethodPost, "/api/plans", token, map[string]any{"title": "Bakery on Main"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create plan status = %d body=%s", rec.Code, rec.Body.String())
	}
	created := decodeJSON(t, rec)
	planID := created["id"].(string)
	if created["title"] != "Bakery on Main" {
		t.Fatalf("created title = %v", created["title"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/plans/"+planID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("plan view status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/plans/"+planID+"/questions/f1/submit", token, map[string]any{"value": "We bake sourdough"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/plans/"+planID+"/questions/f1/accept", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/plans/"+planID+"/score", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d", rec.Code)
	}
}

func TestDuplicateSignUpConflicts(t *testing.T) {
	e, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       e.viewer.Email,
		"password":    "a-long-enough-password",
		"displayName": "Someone Else",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup status = %d", rec.Code)
	}
	if decodeJSON(t, rec)["code"] != "EMAIL_EXISTS" {
		t.Fatalf("duplicate signup body = %s", rec.Body.String())
	}
}

func TestSignInWrongPassword(t *testing.T) {
	e, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    e.viewer.Email,
		"password": "definitely-wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", rec.Code)
	}
}

func TestWhoamiWithoutToken(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/session", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d", rec.Code)
	}
	if decodeJSON(t, rec)["authenticated"] != false {
		t.Fatalf("session body = %s", rec.Body.String())
	}
}

func TestExportEndpointValidatesFormat(t *testing.T) {
	e, handler := newTestHandler(t)
	planID := e.createPlan(t, "Bakery on Main")

	rec := doJSON(t, handler, http.MethodPost, "/api/plans/"+planID+"/export", e.viewer.Token, map[string]any{"format": "odt"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad format status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/plans/"+planID+"/export", e.viewer.Token, map[string]any{"format": "pdf"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("open gates export status = %d body=%s", rec.Code, rec.Body.String())
	}
	if decodeJSON(t, rec)["code"] != "GATES_OPEN" {
		t.Fatalf("open gates body = %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/plans/"+planID+"/export", e.viewer.Token, map[string]any{"format": "pdf", "force": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("forced export status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got == "" {
		t.Fatal("forced export missing content disposition")
	}
}

func TestVisibleQuestionsEndpoint(t *testing.T) {
	e, handler := newTestHandler(t)
	planID := e.createPlan(t, "Bakery on Main")

	rec := doJSON(t, handler, http.MethodGet, "/api/plans/"+planID+"/questions", e.viewer.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("questions status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["planId"] != planID {
		t.Fatalf("questions planId = %v", body["planId"])
	}
	sections := body["sections"].([]any)
	if len(sections) != 2 {
		t.Fatalf("sections = %d", len(sections))
	}
	first := sections[0].(map[string]any)
	if len(first["questions"].([]any)) != 8 {
		t.Fatalf("foundations questions = %d", len(first["questions"].([]any)))
	}
}

func TestTopLevelSearchRoute(t *testing.T) {
	e, handler := newTestHandler(t)
	planID := e.createPlan(t, "Bakery on Main")

	rec := doJSON(t, handler, http.MethodGet, "/api/search?q=sourdough", e.viewer.Token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("search without plan status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/search?plan="+planID+"&q=sourdough", e.viewer.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d body=%s", rec.Code, rec.Body.String())
	}
	if decodeJSON(t, rec)["query"] != "sourdough" {
		t.Fatalf("search body = %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/search?plan="+planID+"&q=x&limit=nope", e.viewer.Token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad limit status = %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	e, handler := newTestHandler(t)
	rec := doJSON(t, handler, http.MethodGet, "/api/nothing-here", e.viewer.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}
	if decodeJSON(t, rec)["code"] != "NOT_FOUND" {
		t.Fatalf("unknown route body = %s", rec.Body.String())
	}
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lingo-service/ddd/application/app"
	"lingo-service/ddd/infrastructure/database/persistence"
	"lingo-service/ddd/infrastructure/queue"
	"lingo-service/ddd/infrastructure/result"

	"github.com/gin-gonic/gin"
)

type stubResolver struct{}

func (stubResolver) Validate(_ context.Context, ref string) error {
	if strings.HasSuffix(ref, ".txt") {
		return fmt.Errorf("unsupported extension")
	}
	return nil
}

func (stubResolver) Fetch(_ context.Context, ref, _ string) (string, error) { return ref, nil }

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	q := queue.NewMemoryTaskQueue(8)
	t.Cleanup(func() { _ = q.Close() })
	taskApp := app.NewTaskApp(app.TaskAppDeps{
		Repo:     persistence.NewMemoryTaskRepository(),
		Queue:    q,
		Results:  result.NewMemoryResultStore(time.Hour),
		Resolver: stubResolver{},
	})
	engine := gin.New()
	SetupRoutes(engine, NewTaskController(taskApp))
	return engine
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
	}
	return w, env
}

func TestSubmitThenPollStatus(t *testing.T) {
	h := newTestRouter(t)

	w, env := do(t, h, http.MethodPost, "/api/v1/tasks", `{"media_ref":"/media/a.mp4","target_language":"fr"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s", w.Code, w.Body.String())
	}
	var submitted struct {
		TaskID string `json:"task_id"`
		State  string `json:"state"`
	}
	_ = json.Unmarshal(env.Data, &submitted)
	if submitted.TaskID == "" || submitted.State != "PENDING" {
		t.Fatalf("submitted = %+v", submitted)
	}

	w, env = do(t, h, http.MethodGet, "/api/v1/tasks/"+submitted.TaskID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d", w.Code)
	}
	var status struct {
		State          string `json:"state"`
		TargetLanguage string `json:"target_language"`
	}
	_ = json.Unmarshal(env.Data, &status)
	if status.State != "PENDING" || status.TargetLanguage != "fr" {
		t.Fatalf("status = %+v", status)
	}

	w, _ = do(t, h, http.MethodGet, "/api/v1/tasks/"+submitted.TaskID+"/result", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("result before completion code = %d, want 409", w.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed json", http.MethodPost, "/api/v1/tasks", `{`, http.StatusBadRequest},
		{"missing ref", http.MethodPost, "/api/v1/tasks", `{}`, http.StatusBadRequest},
		{"unsupported media", http.MethodPost, "/api/v1/tasks", `{"media_ref":"/x.txt"}`, http.StatusBadRequest},
		{"unknown task", http.MethodGet, "/api/v1/tasks/missing", "", http.StatusNotFound},
		{"cancel unknown", http.MethodPost, "/api/v1/tasks/missing/cancel", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := do(t, h, tc.method, tc.path, tc.body)
			if w.Code != tc.want {
				t.Fatalf("code = %d, want %d (%s)", w.Code, tc.want, env.Message)
			}
			if env.Code == 0 {
				t.Fatal("error envelope without code")
			}
		})
	}
}

func TestCancelPendingOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	_, env := do(t, h, http.MethodPost, "/api/v1/tasks", `{"media_ref":"/media/a.mp4"}`)
	var submitted struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(env.Data, &submitted)

	w, env := do(t, h, http.MethodPost, "/api/v1/tasks/"+submitted.TaskID+"/cancel", "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel code = %d", w.Code)
	}
	var out struct {
		State    string `json:"state"`
		Accepted bool   `json:"accepted"`
	}
	_ = json.Unmarshal(env.Data, &out)
	if !out.Accepted || out.State != "CANCELLED" {
		t.Fatalf("cancel = %+v", out)
	}
}

func TestProvidersAndHealth(t *testing.T) {
	h := newTestRouter(t)
	w, env := do(t, h, http.MethodGet, "/api/v1/providers", "")
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"providers":[]`) {
		t.Fatalf("providers = %d %s", w.Code, env.Data)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestLanguagesAndEstimate(t *testing.T) {
	h := newTestRouter(t)

	w, env := do(t, h, http.MethodGet, "/api/v1/languages", "")
	if w.Code != http.StatusOK {
		t.Fatalf("languages code = %d", w.Code)
	}
	var langs struct {
		Languages []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"languages"`
	}
	_ = json.Unmarshal(env.Data, &langs)
	if len(langs.Languages) == 0 || langs.Languages[0].Code == "" {
		t.Fatalf("languages = %s", env.Data)
	}

	w, env = do(t, h, http.MethodGet, "/api/v1/estimate?duration_seconds=600&model_profile=base", "")
	if w.Code != http.StatusOK {
		t.Fatalf("estimate code = %d body=%s", w.Code, w.Body.String())
	}
	var est struct {
		TotalSeconds float64 `json:"total_seconds"`
		ModelProfile string  `json:"model_profile"`
	}
	_ = json.Unmarshal(env.Data, &est)
	if est.TotalSeconds != 135 || est.ModelProfile != "base" {
		t.Fatalf("estimate = %s", env.Data)
	}

	for _, path := range []string{"/api/v1/estimate", "/api/v1/estimate?duration_seconds=-1", "/api/v1/estimate?duration_seconds=abc"} {
		if w, _ := do(t, h, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s code = %d, want 400", path, w.Code)
		}
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/noteservice"
	"github.com/starford/maelstrom/internal/testutil"
)

type testOpts struct {
	authEnabled bool
	token       string
	llm         *testutil.ScriptedLLM
	sse         http.Handler
}

// testEnv sets up a temp SQLite DB, generator, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	return testEnvFull(t, testOpts{authEnabled: authToken != "", token: authToken})
}

func testEnvFull(t *testing.T, o testOpts) (*noteservice.Service, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	if o.llm == nil {
		o.llm = &testutil.ScriptedLLM{Reply: testutil.InsightReply("Quiet.[1]", "Why[2]?")}
	}
	gen := insight.NewGenerator(db, o.llm, insight.Config{}, nil)
	svc := noteservice.NewService(db, gen, nil, nil)
	return svc, NewRouter(svc, o.authEnabled, o.token, "local", o.sse)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestMe(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decode[MeResponse](t, w).UserID; got != "local" {
		t.Errorf("user_id = %q", got)
	}
}

func TestCreateAndListNotes(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Content: "  first  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	first := decode[Note](t, w)
	if first.Content != "first" || first.UserID != "local" || first.ID == "" {
		t.Errorf("note = %+v", first)
	}
	do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Content: "second"})

	w = do(t, router, http.MethodGet, "/notes", nil)
	list := decode[NoteListResponse](t, w).Notes
	if len(list) != 2 || list[0].Content != "second" {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/notes?limit=1", nil)
	if n := len(decode[NoteListResponse](t, w).Notes); n != 1 {
		t.Errorf("limited list = %d notes", n)
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w = do(t, router, http.MethodGet, "/notes?since="+future, nil)
	if n := len(decode[NoteListResponse](t, w).Notes); n != 0 {
		t.Errorf("since future = %d notes", n)
	}
}

func TestCreateNote_Invalid(t *testing.T) {
	_, router := testEnv(t, "")
	for _, content := range []string{"", "   ", strings.Repeat("x", 281)} {
		if w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Content: content}); w.Code != http.StatusBadRequest {
			t.Errorf("content len %d: status = %d", len(content), w.Code)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", w.Code)
	}
}

func TestListNotes_BadSince(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes?since=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestNotesByIDs(t *testing.T) {
	svc, router := testEnv(t, "")
	ctx := context.Background()
	a, _ := svc.CreateNote(ctx, "local", "a")
	b, _ := svc.CreateNote(ctx, "local", "b")

	w := do(t, router, http.MethodGet, "/notes?ids="+b.ID+","+a.ID+",missing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	notes := decode[NoteListResponse](t, w).Notes
	if len(notes) != 2 || notes[0].ID != b.ID || notes[1].ID != a.ID {
		t.Errorf("notes = %+v", notes)
	}

	w = do(t, router, http.MethodGet, "/notes?ids=gone1,gone2", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
	if msg := decode[errResponse](t, w).Error; msg != noteservice.MissingNotesMessage {
		t.Errorf("error = %q", msg)
	}
}

func TestNotFoundKeepsGenericMessage(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/undercurrents/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if msg := decode[errResponse](t, w).Error; msg != "not found" {
		t.Errorf("error = %q", msg)
	}
}

func TestSearchNotes(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.CreateNote(context.Background(), "local", "the harbour was silent")
	svc.CreateNote(context.Background(), "local", "coffee again")

	w := do(t, router, http.MethodGet, "/notes?q=harbour", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if res := decode[SearchResponse](t, w).Results; len(res) != 1 {
		t.Errorf("results = %+v", res)
	}
}

func TestDeleteNote(t *testing.T) {
	svc, router := testEnv(t, "")
	n, _ := svc.CreateNote(context.Background(), "local", "bye")

	if w := do(t, router, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestGenerate_SoftFailure(t *testing.T) {
	svc, router := testEnv(t, "")
	svc.CreateNote(context.Background(), "local", "only one")

	w := do(t, router, http.MethodPost, "/undercurrents/generate", GenerateRequest{Timeframe: "week"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if msg := decode[MessageResponse](t, w).Message; msg != insight.InsufficientDataMessage {
		t.Errorf("message = %q", msg)
	}
}

func TestGenerate_HardFailure(t *testing.T) {
	llm := &testutil.ScriptedLLM{Err: errors.New("quota exceeded")}
	svc, router := testEnvFull(t, testOpts{llm: llm})
	for _, c := range []string{"a", "b", "c"} {
		svc.CreateNote(context.Background(), "local", c)
	}

	w := do(t, router, http.MethodPost, "/undercurrents/generate", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	if msg := decode[errResponse](t, w).Error; !strings.Contains(msg, "quota exceeded") {
		t.Errorf("error = %q", msg)
	}
}

func TestUndercurrentLifecycle(t *testing.T) {
	svc, router := testEnv(t, "")
	for _, c := range []string{"a", "b", "c"} {
		svc.CreateNote(context.Background(), "local", c)
	}

	// Empty body selects the default timeframe.
	w := do(t, router, http.MethodPost, "/undercurrents/generate", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("generate = %d, body = %s", w.Code, w.Body.String())
	}
	u := decode[Undercurrent](t, w)
	if len(u.NotesIncluded) != 3 || len(u.SentimentColors) != 4 {
		t.Errorf("undercurrent = %+v", u)
	}

	w = do(t, router, http.MethodGet, "/undercurrents", nil)
	if list := decode[UndercurrentListResponse](t, w).Undercurrents; len(list) != 1 || list[0].ID != u.ID {
		t.Errorf("list = %+v", list)
	}

	w = do(t, router, http.MethodGet, "/undercurrents/"+u.ID, nil)
	if got := decode[Undercurrent](t, w); got.SummaryText != u.SummaryText {
		t.Errorf("get = %+v", got)
	}

	w = do(t, router, http.MethodGet, "/undercurrents/"+u.ID+"/rendered", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rendered = %d", w.Code)
	}
	rendered := decode[RenderedUndercurrent](t, w)
	summary := rendered.Rendered.Summary
	if len(summary) != 2 || summary[0].Text != "Quiet." || summary[1].Index != 1 || summary[1].NoteIDs[0] != u.NotesIncluded[0] {
		t.Errorf("summary segments = %+v", summary)
	}
	if q := rendered.Rendered.Questions; len(q) != 1 || q[0][1].Index != 1 || q[0][1].NoteIDs[0] != u.NotesIncluded[1] {
		t.Errorf("question segments = %+v", q)
	}

	if w := do(t, router, http.MethodDelete, "/undercurrents/"+u.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/undercurrents/"+u.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(CreateNoteRequest{Content: "test"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/me", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret")

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) (*noteservice.Service, http.Handler) {
	t.Helper()
	// Minimal SSE handler stub: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return testEnvFull(t, testOpts{authEnabled: authEnabled, token: token, sse: sseHandler})
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/repository"
	"github.com/stemsi/exstem-ingest/internal/response"
	"github.com/stemsi/exstem-ingest/internal/service"
	"github.com/stemsi/exstem-ingest/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type memProfiles map[string]*model.ExamProfile

func (m memProfiles) GetProfile(_ context.Context, id string) (*model.ExamProfile, error) {
	p, ok := m[id]
	if !ok {
		return nil, repository.ErrExamNotFound
	}
	return p, nil
}

func (m memProfiles) SaveProfile(_ context.Context, p *model.ExamProfile) error {
	m[p.ID] = p
	return nil
}

func (m memProfiles) ListIDs(context.Context) ([]string, error) { return nil, nil }

type memRoster []model.RosterStudent

func (m memRoster) ListRoster(context.Context, []string) ([]model.RosterStudent, error) {
	return m, nil
}

type memQueue struct{ enqueued []*model.CommitPayload }

func (q *memQueue) Enqueue(_ context.Context, p *model.CommitPayload) error {
	q.enqueued = append(q.enqueued, p)
	return nil
}

func (q *memQueue) Persisted(context.Context, uuid.UUID) (bool, error) { return false, nil }

type memCommits struct{}

func (memCommits) SaveCommit(context.Context, *model.CommitPayload) error { return nil }

type memBatches struct{ limit, offset int }

func (b *memBatches) ListBatches(_ context.Context, examID string, limit, offset int) ([]repository.ImportBatch, int, error) {
	b.limit, b.offset = limit, offset
	return []repository.ImportBatch{{ExamID: examID}}, 45, nil
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Pagination *response.Pagination `json:"pagination"`
	Error      *struct {
		Code   response.ErrCode  `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

// Fields returns the field errors, if any.
func (e envelope) Fields() map[string]string {
	if e.Error == nil {
		return nil
	}
	return e.Error.Fields
}

type fixture struct {
	engine *gin.Engine
	queue  *memQueue
	store  memProfiles
	lister *memBatches
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	store := memProfiles{"tyt-1": {ID: "tyt-1", Type: model.ExamTYT, CanonicalBooklet: "A", Key: "ABCD"}}
	profiles := service.NewProfileService(nil, store, nil, zerolog.Nop())
	roster := memRoster{
		{ID: "s1", StudentNumber: "101", FullName: "Elif Şahin", ClassName: "12A"},
		{ID: "s2", StudentNumber: "102", FullName: "Burak Çelik", ClassName: "12A"},
	}
	queue := &memQueue{}
	cfg := config.Import{
		MapperMinConfidence:   0.5,
		MapperSampleSize:      50,
		MatchAcceptThreshold:  0.85,
		MatchSeparationMargin: 0.08,
		MatchCandidateFloor:   0.55,
		MatchTopK:             3,
		RowWorkers:            2,
		NetRounding:           "total",
		NetPrecision:          2,
		NationalIDLength:      11,
		FallbackEncoding:      "windows-1254",
		DiagnosticLang:        "en",
		SessionTTL:            time.Hour,
	}
	imports, err := service.NewImportService(cfg, profiles, roster, queue, memCommits{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewImportService: %v", err)
	}
	lister := &memBatches{}

	ih := NewImportHandler(imports, maxUpload, zerolog.Nop())
	ph := NewProfileHandler(profiles, lister)

	r := gin.New()
	g := r.Group("/api/v1")
	g.POST("/imports", ih.CreateImport)
	g.GET("/imports/:session_id", ih.GetImport)
	g.PUT("/imports/:session_id/mapping", ih.MapColumns)
	g.POST("/imports/:session_id/match", ih.MatchStudents)
	g.POST("/imports/:session_id/validate", ih.Validate)
	g.POST("/imports/:session_id/overrides", ih.Override)
	g.POST("/imports/:session_id/assignments", ih.AssignStudent)
	g.POST("/imports/:session_id/commit", ih.Commit)
	g.POST("/imports/:session_id/persist", ih.Persist)
	g.DELETE("/imports/:session_id", ih.Abort)
	g.GET("/exams/:exam_id/profile", ph.GetProfile)
	g.PUT("/exams/:exam_id/profile", ph.PutProfile)
	g.GET("/exams/:exam_id/imports", ph.ListImports)
	r.NoRoute(NotFound)

	return &fixture{engine: r, queue: queue, store: store, lister: lister}
}

func (f *fixture) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s %s: %v (%s)", req.Method, req.URL.Path, err, w.Body.String())
	}
	return w.Code, env
}

func (f *fixture) jsonReq(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const resultsCSV = "No,Ad Soyad,Cevap\n101,Elif Şahin,ABCD\n102,Burak Çelik,ABDD\n"

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	code, env := f.do(t, uploadRequest(t, "sonuc.csv", resultsCSV, map[string]string{"exam_id": "tyt-1"}))
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, error = %+v", code, env.Error)
	}
	var data struct {
		Session struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"session"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Session.State != "parsed" {
		t.Fatalf("state = %q, want parsed", data.Session.State)
	}
	return data.Session.ID
}

func TestImportLifecycle(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.create(t)
	base := "/api/v1/imports/" + id

	steps := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPut, base + "/mapping", http.StatusOK},
		{http.MethodPost, base + "/match", http.StatusOK},
		{http.MethodPost, base + "/validate", http.StatusOK},
		{http.MethodPost, base + "/commit", http.StatusAccepted},
	}
	for _, s := range steps {
		code, env := f.jsonReq(t, s.method, s.path, nil)
		if code != s.status {
			t.Fatalf("%s %s = %d, want %d (error %+v)", s.method, s.path, code, s.status, env.Error)
		}
	}

	if len(f.queue.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(f.queue.enqueued))
	}
	if got := len(f.queue.enqueued[0].Matched); got != 2 {
		t.Errorf("matched = %d, want 2", got)
	}

	code, env := f.jsonReq(t, http.MethodPost, base+"/commit", nil)
	if code != http.StatusConflict || env.Error.Code != response.ErrInvalidTransition {
		t.Errorf("second commit = %d %+v, want 409 INVALID_TRANSITION", code, env.Error)
	}

	code, env = f.jsonReq(t, http.MethodGet, base, nil)
	if code != http.StatusOK {
		t.Fatalf("get = %d", code)
	}
	var data struct {
		Session   struct{ State string } `json:"session"`
		Persisted bool                   `json:"persisted"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Session.State != "committed" {
		t.Errorf("state = %q, want committed", data.Session.State)
	}

	code, env = f.jsonReq(t, http.MethodPost, base+"/persist", nil)
	if code != http.StatusAccepted {
		t.Fatalf("persist = %d %+v", code, env.Error)
	}
	if len(f.queue.enqueued) != 2 || f.queue.enqueued[1].BatchID != f.queue.enqueued[0].BatchID {
		t.Errorf("enqueued = %d, want the same batch queued twice", len(f.queue.enqueued))
	}
}

func TestPersistBeforeCommit(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.create(t)
	code, env := f.jsonReq(t, http.MethodPost, "/api/v1/imports/"+id+"/persist", nil)
	if code != http.StatusConflict || env.Error.Code != response.ErrInvalidTransition {
		t.Errorf("persist before commit = %d %+v, want 409 INVALID_TRANSITION", code, env.Error)
	}
}

func TestCreateImportRejects(t *testing.T) {
	f := newFixture(t, 64)

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		status   int
		code     response.ErrCode
	}{
		{"missing exam", "a.csv", "x", nil, http.StatusBadRequest, response.ErrValidation},
		{"bad header mode", "a.csv", "x", map[string]string{"exam_id": "tyt-1", "header": "maybe"}, http.StatusBadRequest, response.ErrValidation},
		{"extension", "a.pdf", "x", map[string]string{"exam_id": "tyt-1"}, http.StatusBadRequest, response.ErrUnsupportedFile},
		{"too large", "a.csv", string(bytes.Repeat([]byte("A"), 100)), map[string]string{"exam_id": "tyt-1"}, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge},
		{"unknown exam", "a.csv", "No\n1\n", map[string]string{"exam_id": "nope"}, http.StatusNotFound, response.ErrProfileNotFound},
		{"fixed width without layout", "a.dat", "x", map[string]string{"exam_id": "tyt-1", "fixed_width": "true"}, http.StatusUnprocessableEntity, response.ErrBookletConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.do(t, uploadRequest(t, tt.filename, tt.content, tt.fields))
			if code != tt.status {
				t.Fatalf("status = %d, want %d (error %+v)", code, tt.status, env.Error)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestCreateImportUnreadableFile(t *testing.T) {
	f := newFixture(t, 1<<20)
	code, env := f.do(t, uploadRequest(t, "bos.csv", "", map[string]string{"exam_id": "tyt-1"}))
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", code)
	}
	if env.Error.Code != response.ErrFileUnreadable {
		t.Errorf("code = %s", env.Error.Code)
	}
	id := env.Error.Fields["session_id"]
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("session_id %q: %v", id, err)
	}
	if env.Error.Fields["detail"] == "" {
		t.Error("missing detail")
	}

	code, env = f.jsonReq(t, http.MethodPut, "/api/v1/imports/"+id+"/mapping", nil)
	if code != http.StatusConflict {
		t.Errorf("mapping an aborted session = %d %+v, want 409", code, env.Error)
	}
}

func TestSessionErrors(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.create(t)
	base := "/api/v1/imports/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   response.ErrCode
	}{
		{"bad id", http.MethodGet, "/api/v1/imports/nope", nil, http.StatusBadRequest, response.ErrInvalidID},
		{"unknown session", http.MethodGet, "/api/v1/imports/" + uuid.NewString(), nil, http.StatusNotFound, response.ErrSessionNotFound},
		{"match before mapping", http.MethodPost, base + "/match", nil, http.StatusConflict, response.ErrInvalidTransition},
		{"unknown role", http.MethodPut, base + "/mapping", map[string]any{"overrides": map[string]string{"0": "shoe_size"}}, http.StatusBadRequest, response.ErrValidation},
		{"column out of range", http.MethodPut, base + "/mapping", map[string]any{"overrides": map[string]string{"9": "answers"}}, http.StatusBadRequest, response.ErrColumnOutOfRange},
		{"override missing kind", http.MethodPost, base + "/overrides", map[string]any{}, http.StatusBadRequest, response.ErrValidation},
		{"override not allowed", http.MethodPost, base + "/overrides", map[string]any{"kind": "file_unreadable"}, http.StatusBadRequest, response.ErrNotOverridable},
		{"assign missing row", http.MethodPost, base + "/assignments", map[string]any{"student_id": "s1"}, http.StatusBadRequest, response.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.jsonReq(t, tt.method, tt.path, tt.body)
			if code != tt.status {
				t.Fatalf("status = %d, want %d (error %+v)", code, tt.status, env.Error)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestAbortThenUse(t *testing.T) {
	f := newFixture(t, 1<<20)
	id := f.create(t)
	base := "/api/v1/imports/" + id

	if code, env := f.jsonReq(t, http.MethodDelete, base, nil); code != http.StatusOK {
		t.Fatalf("abort = %d %+v", code, env.Error)
	}
	if code, _ := f.jsonReq(t, http.MethodPut, base+"/mapping", nil); code != http.StatusConflict {
		t.Errorf("mapping after abort = %d, want 409", code)
	}
}

func TestProfileEndpoints(t *testing.T) {
	f := newFixture(t, 1<<20)

	code, env := f.jsonReq(t, http.MethodGet, "/api/v1/exams/tyt-1/profile", nil)
	if code != http.StatusOK {
		t.Fatalf("get = %d %+v", code, env.Error)
	}
	if code, _ := f.jsonReq(t, http.MethodGet, "/api/v1/exams/missing/profile", nil); code != http.StatusNotFound {
		t.Errorf("missing profile = %d, want 404", code)
	}

	body := map[string]any{
		"type":              "LGS",
		"canonical_booklet": "A",
		"key":               "ABCDA",
		"booklets":          []map[string]any{{"tag": "B", "order": []int{5, 4, 3, 2, 1}}},
	}
	if code, env := f.jsonReq(t, http.MethodPut, "/api/v1/exams/lgs-2/profile", body); code != http.StatusOK {
		t.Fatalf("put = %d %+v", code, env.Error)
	}
	if p := f.store["lgs-2"]; p == nil || p.Type != model.ExamLGS {
		t.Errorf("stored = %+v", p)
	}

	body["booklets"] = []map[string]any{{"tag": "B", "order": []int{1, 1, 2, 3, 4}}}
	code, env = f.jsonReq(t, http.MethodPut, "/api/v1/exams/lgs-3/profile", body)
	if code != http.StatusUnprocessableEntity || env.Error.Code != response.ErrBookletConfig {
		t.Errorf("broken booklet = %d %+v, want 422 BOOKLET_CONFIG", code, env.Error)
	}

	if code, _ := f.jsonReq(t, http.MethodGet, "/api/v1/exams/tyt-1/imports?per_page=500", nil); code != http.StatusOK {
		t.Errorf("list imports = %d", code)
	}
	if f.lister.limit != 20 {
		t.Errorf("limit = %d, want clamped to 20", f.lister.limit)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, 1<<20)
	code, env := f.jsonReq(t, http.MethodGet, "/api/v1/nowhere", nil)
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != response.ErrNotFound {
		t.Errorf("unknown route = %d %+v, want 404 NOT_FOUND", code, env.Error)
	}
}

func TestListImportsPagination(t *testing.T) {
	f := newFixture(t, 1<<20)
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantPage   int
		wantPages  int
	}{
		{"defaults", "", 20, 0, 1, 3},
		{"third page", "?page=3&per_page=20", 20, 40, 3, 3},
		{"small pages", "?page=2&per_page=10", 10, 10, 2, 5},
		{"bad page", "?page=-4&per_page=abc", 20, 0, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.jsonReq(t, http.MethodGet, "/api/v1/exams/tyt-1/imports"+tt.query, nil)
			if code != http.StatusOK {
				t.Fatalf("code = %d", code)
			}
			if f.lister.limit != tt.wantLimit || f.lister.offset != tt.wantOffset {
				t.Errorf("limit=%d offset=%d, want %d/%d", f.lister.limit, f.lister.offset, tt.wantLimit, tt.wantOffset)
			}
			if env.Pagination == nil {
				t.Fatal("pagination missing")
			}
			p := env.Pagination
			if p.Page != tt.wantPage || p.TotalItems != 45 || p.TotalPages != tt.wantPages {
				t.Errorf("pagination = %+v", p)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r := gin.New()
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r.GET("/up", NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": ok}).Health)
	r.GET("/down", NewHealthHandler(map[string]Pinger{"postgres": ok, "redis": down}).Health)

	for path, want := range map[string]int{"/up": http.StatusOK, "/down": http.StatusServiceUnavailable} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Errorf("%s = %d, want %d", path, w.Code, want)
		}
	}
}

type memClasses struct{ names []string }

func (m *memClasses) List(context.Context) ([]model.Class, error) {
	out := make([]model.Class, len(m.names))
	for i, n := range m.names {
		out[i] = model.Class{ID: i + 1, Name: n}
	}
	return out, nil
}

func (m *memClasses) Ensure(_ context.Context, name string) (*model.Class, error) {
	for i, n := range m.names {
		if n == name {
			return &model.Class{ID: i + 1, Name: n}, nil
		}
	}
	m.names = append(m.names, name)
	return &model.Class{ID: len(m.names), Name: name}, nil
}

type memStudents struct {
	students []model.RosterStudent
	filter   []string
}

func (m *memStudents) ListRoster(_ context.Context, classes []string) ([]model.RosterStudent, error) {
	m.filter = classes
	return m.students, nil
}

func (m *memStudents) Create(_ context.Context, s *model.RosterStudent, _ int) error {
	for _, e := range m.students {
		if s.NationalID != "" && e.NationalID == s.NationalID {
			return repository.ErrDuplicateNationalID
		}
	}
	s.ID = uuid.NewString()
	m.students = append(m.students, *s)
	return nil
}

type memRosterCache struct{ invalidations int }

func (m *memRosterCache) Invalidate(context.Context) error {
	m.invalidations++
	return nil
}

func TestRosterEndpoints(t *testing.T) {
	classes := &memClasses{names: []string{"8A"}}
	students := &memStudents{}
	cache := &memRosterCache{}
	h := NewRosterHandler(classes, students, cache, zerolog.Nop())

	r := gin.New()
	r.GET("/roster/classes", h.ListClasses)
	r.GET("/roster/students", h.ListStudents)
	r.POST("/roster/students", h.CreateStudent)
	f := &fixture{engine: r}

	body := map[string]string{"full_name": "Işıl Aydın", "class_name": "8C", "national_id": "12345678901"}
	if code, env := f.jsonReq(t, http.MethodPost, "/roster/students", body); code != http.StatusCreated {
		t.Fatalf("create = %d %+v", code, env.Error)
	}
	if code, env := f.jsonReq(t, http.MethodPost, "/roster/students", body); code != http.StatusConflict || env.Error.Code != response.ErrConflict {
		t.Errorf("duplicate = %d %+v, want 409", code, env.Error)
	}
	if code, env := f.jsonReq(t, http.MethodPost, "/roster/students", map[string]string{"class_name": "8C"}); code != http.StatusBadRequest || env.Fields()["full_name"] == "" {
		t.Errorf("missing name = %d %+v", code, env.Error)
	}
	if len(classes.names) != 2 {
		t.Errorf("classes = %v, want 8C created", classes.names)
	}
	if cache.invalidations != 1 {
		t.Errorf("invalidations = %d, want 1 for the one enrolled student", cache.invalidations)
	}

	if code, _ := f.jsonReq(t, http.MethodGet, "/roster/students?classes=8A,+8C,", nil); code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	if len(students.filter) != 2 || students.filter[1] != "8C" {
		t.Errorf("filter = %q", students.filter)
	}
}

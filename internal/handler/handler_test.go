package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"ghl-sync-bridge/internal/auth"
	"ghl-sync-bridge/internal/config"
	"ghl-sync-bridge/internal/ghl"
	"ghl-sync-bridge/internal/handler"
	"ghl-sync-bridge/internal/model"
	"ghl-sync-bridge/internal/reconcile"
	"ghl-sync-bridge/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type call struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

// platform stands in for the external API. reply decides each answer.
type platform struct {
	mu    sync.Mutex
	calls []call
	reply func(r *http.Request) (int, string)
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	p.mu.Lock()
	p.calls = append(p.calls, call{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	reply := p.reply
	p.mu.Unlock()

	status, out := http.StatusOK, `{}`
	if reply != nil {
		status, out = reply(r)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, out)
}

func (p *platform) Calls() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

type fixture struct {
	router   *gin.Engine
	store    store.Store
	platform *platform
	cfg      *config.Config
}

type option func(*config.Config, *handler.RouterOptions)

func withoutKey() option {
	return func(c *config.Config, _ *handler.RouterOptions) { c.APIKey = "" }
}

func withoutAssignedUser() option {
	return func(c *config.Config, _ *handler.RouterOptions) { c.DefaultAssignedUserID = "" }
}

func withJWT(secret string) option {
	return func(_ *config.Config, o *handler.RouterOptions) { o.JWTSecret = secret }
}

func setup(t *testing.T, reply func(r *http.Request) (int, string), opts ...option) *fixture {
	t.Helper()
	return setupOn(t, store.NewMemory(), reply, opts...)
}

func setupOn(t *testing.T, st store.Store, reply func(r *http.Request) (int, string), opts ...option) *fixture {
	t.Helper()
	p := &platform{reply: reply}
	srv := httptest.NewServer(p)
	t.Cleanup(srv.Close)
	return build(t, st, p, srv.URL, opts...)
}

// stores returns a fresh memory store and a fresh SQLite database.
func stores(t *testing.T) map[string]func(*testing.T) store.Store {
	t.Helper()
	return map[string]func(*testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return store.NewMemory() },
		"sqlite": func(t *testing.T) store.Store {
			ctx := context.Background()
			st, err := store.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "mirror.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			if err := st.Migrate(ctx); err != nil {
				t.Fatalf("migrate sqlite: %v", err)
			}
			t.Cleanup(st.Close)
			return st
		},
	}
}

func build(t *testing.T, st store.Store, p *platform, baseURL string, opts ...option) *fixture {
	t.Helper()
	cfg := &config.Config{
		BaseURL:               baseURL,
		APIVersion:            ghl.DefaultAPIVersion,
		APIKey:                "test-token",
		DefaultLocationID:     "loc_default",
		DefaultAssignedUserID: "usr_default",
		Timeout:               2 * time.Second,
		Location:              time.UTC,
	}
	var ro handler.RouterOptions
	for _, o := range opts {
		o(cfg, &ro)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ro.Logger = logger

	client := ghl.New(ghl.Options{
		BaseURL:    cfg.BaseURL,
		Token:      cfg.APIKey,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
		Logger:     logger,
	})
	rec := reconcile.New(st, cfg.Location, logger)
	h := handler.New(cfg, client, rec, st, logger)
	return &fixture{router: h.Router(ro), store: st, platform: p, cfg: cfg}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (f *fixture) seed(t *testing.T) *model.Appointment {
	t.Helper()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	s := func(v string) *string { return &v }
	a, err := f.store.UpsertAppointment(context.Background(), model.AppointmentPatch{
		ExternalID:     "apt_1",
		LocationID:     s("loc_1"),
		CalendarID:     s("cal_1"),
		ContactID:      s("k1"),
		Title:          s("Consult"),
		Status:         s(model.StatusConfirmed),
		AssignedUserID: s("usr_1"),
		Notes:          s("bring x-rays"),
		StartTime:      &start,
		EndTime:        &end,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

func created(id string) func(*http.Request) (int, string) {
	return func(*http.Request) (int, string) {
		return http.StatusCreated, `{"id":"` + id + `"}`
	}
}

// ----- appointments -----

func TestCreateAppointmentDefaults(t *testing.T) {
	f := setup(t, created("apt_new"))

	w, out := f.do(t, http.MethodPost, "/appointments/create/",
		`{"calendarId":"c1","contactId":"k1","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if out["external_id"] != "apt_new" || out["status"] != "confirmed" || out["title"] != "Appointment" {
		t.Fatalf("unexpected body: %v", out)
	}

	a, err := f.store.GetAppointment(context.Background(), "apt_new")
	if err != nil {
		t.Fatalf("not stored: %v", err)
	}
	if a.Status != "confirmed" || a.Title != "Appointment" || a.LocationID != "loc_default" {
		t.Fatalf("unexpected row: %+v", a)
	}
	if !a.StartTime.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) || !a.EndTime.Equal(time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("times: %v %v", a.StartTime, a.EndTime)
	}
	if a.AssignedUserID == nil || *a.AssignedUserID != "usr_default" {
		t.Fatalf("assigned user: %v", a.AssignedUserID)
	}

	calls := f.platform.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one upstream call, got %d", len(calls))
	}
	got := calls[0]
	if got.Method != http.MethodPost || got.Path != "/calendars/events/appointments" {
		t.Fatalf("unexpected call: %s %s", got.Method, got.Path)
	}
	if got.Header.Get("Authorization") != "Bearer test-token" || got.Header.Get("LocationId") != "loc_default" {
		t.Fatalf("headers: %v", got.Header)
	}
	if got.Body["assignedUserId"] != "usr_default" || got.Body["title"] != "Appointment" ||
		got.Body["appointmentStatus"] != "confirmed" || got.Body["ignoreFreeSlotValidation"] != true {
		t.Fatalf("payload: %v", got.Body)
	}
}

func TestCreateAppointmentPlatformBodyWins(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{"id":"apt_2","title":"Renamed upstream","appointmentStatus":"new","notes":""}`
	})
	w, _ := f.do(t, http.MethodPost, "/appointments/create/",
		`{"calendarId":"c1","contactId":"k1","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z","title":"Mine","notes":"n"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	a, _ := f.store.GetAppointment(context.Background(), "apt_2")
	if a.Title != "Renamed upstream" || a.Status != "new" {
		t.Fatalf("body did not win: %+v", a)
	}
	if a.Notes == nil || *a.Notes != "n" {
		t.Fatalf("blank body notes should fall back to request: %v", a.Notes)
	}
}

func TestCreateAppointmentMissingField(t *testing.T) {
	full := map[string]string{
		"calendarId": "c1",
		"contactId":  "k1",
		"startTime":  "2024-01-01T10:00:00Z",
		"endTime":    "2024-01-01T10:30:00Z",
	}
	for _, missing := range []string{"calendarId", "contactId", "startTime", "endTime"} {
		t.Run(missing, func(t *testing.T) {
			f := setup(t, created("apt_x"))
			in := map[string]string{}
			for k, v := range full {
				if k != missing {
					in[k] = v
				}
			}
			raw, _ := json.Marshal(in)

			w, out := f.do(t, http.MethodPost, "/appointments/create/", string(raw))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", w.Code, w.Body.String())
			}
			if out["field"] != missing {
				t.Fatalf("expected field %q, got %v", missing, out["field"])
			}
			if n := len(f.platform.Calls()); n != 0 {
				t.Fatalf("expected no upstream call, got %d", n)
			}
			if list, _ := f.store.ListAppointments(context.Background()); len(list) != 0 {
				t.Fatalf("store mutated: %+v", list)
			}
		})
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		opts  []option
		field string
	}{
		{"empty body names first field", ``, nil, "calendarId"},
		{"blank counts as missing", `{"calendarId":" ","contactId":"k1"}`, nil, "calendarId"},
		{"bad start", `{"calendarId":"c1","contactId":"k1","startTime":"soon","endTime":"2024-01-01T10:30:00Z"}`, nil, "startTime"},
		{"no assigned user", `{"calendarId":"c1","contactId":"k1","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z"}`, []option{withoutAssignedUser()}, "assignedUserId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, created("apt_x"), tt.opts...)
			w, out := f.do(t, http.MethodPost, "/appointments/create/", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status %d: %s", w.Code, w.Body.String())
			}
			if out["field"] != tt.field {
				t.Fatalf("field: %v", out["field"])
			}
			if len(f.platform.Calls()) != 0 {
				t.Fatal("upstream called")
			}
		})
	}
}

func TestCreateAppointmentMalformedJSON(t *testing.T) {
	f := setup(t, created("apt_x"))
	w, _ := f.do(t, http.MethodPost, "/appointments/create/", `{"calendarId":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestCreateAppointmentNotConfigured(t *testing.T) {
	f := setup(t, created("apt_x"), withoutKey())
	w, out := f.do(t, http.MethodPost, "/appointments/create/", `{}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	if out["error"] == nil {
		t.Fatalf("expected an error message: %v", out)
	}
	if len(f.platform.Calls()) != 0 {
		t.Fatal("upstream called without credentials")
	}
}

func TestCreateAppointmentUpstreamError(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) {
		return http.StatusUnprocessableEntity, `{"message":"slot not available"}`
	})
	w, out := f.do(t, http.MethodPost, "/appointments/create/",
		`{"calendarId":"c1","contactId":"k1","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", w.Code)
	}
	if details, _ := out["details"].(string); details != `{"message":"slot not available"}` {
		t.Fatalf("details: %v", out["details"])
	}
	if list, _ := f.store.ListAppointments(context.Background()); len(list) != 0 {
		t.Fatal("store mutated on upstream failure")
	}
}

func TestCreateAppointmentConnectionError(t *testing.T) {
	p := &platform{}
	srv := httptest.NewServer(p)
	url := srv.URL
	srv.Close()

	f := build(t, store.NewMemory(), p, url)
	w, _ := f.do(t, http.MethodPost, "/appointments/create/",
		`{"calendarId":"c1","contactId":"k1","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateAppointmentResponseWithoutID(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) { return http.StatusCreated, `{}` })
	w, _ := f.do(t, http.MethodPost, "/appointments/create/",
		`{"calendarId":"c1","contactId":"k1","startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
}

func TestGetAndListAppointments(t *testing.T) {
	f := setup(t, nil)
	f.seed(t)

	w, out := f.do(t, http.MethodGet, "/appointments/apt_1/", "")
	if w.Code != http.StatusOK || out["calendar_id"] != "cal_1" {
		t.Fatalf("get: %d %v", w.Code, out)
	}
	if w, _ := f.do(t, http.MethodGet, "/appointments/nope/", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get unknown: %d", w.Code)
	}

	w, _ = f.do(t, http.MethodGet, "/appointments/", "")
	var list []model.Appointment
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list: %v %s", err, w.Body.String())
	}
}

func TestUpdateAppointmentUnknown(t *testing.T) {
	f := setup(t, nil)
	w, _ := f.do(t, http.MethodPut, "/appointments/missing/update/", `{"title":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
	if len(f.platform.Calls()) != 0 {
		t.Fatal("upstream called for unknown appointment")
	}
}

func TestUpdateAppointmentMergesOverStored(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f := setupOn(t, newStore(t), func(*http.Request) (int, string) { return http.StatusNoContent, `` })
			before := f.seed(t)

			w, out := f.do(t, http.MethodPut, "/appointments/apt_1/update/", `{"title":"Follow-up","endTime":"2024-01-01T11:00:00Z"}`)
			if w.Code != http.StatusOK {
				t.Fatalf("status %d: %s", w.Code, w.Body.String())
			}
			if out["title"] != "Follow-up" {
				t.Fatalf("body: %v", out)
			}

			calls := f.platform.Calls()
			if len(calls) != 1 || calls[0].Method != http.MethodPut || calls[0].Path != "/calendars/events/appointments/apt_1" {
				t.Fatalf("calls: %+v", calls)
			}
			sent := calls[0].Body
			if sent["calendarId"] != "cal_1" || sent["contactId"] != "k1" || sent["assignedUserId"] != "usr_1" ||
				sent["appointmentStatus"] != "confirmed" || sent["title"] != "Follow-up" || sent["notes"] != "bring x-rays" {
				t.Fatalf("payload not merged over stored: %v", sent)
			}
			if calls[0].Header.Get("LocationId") != "loc_1" {
				t.Fatalf("location header: %q", calls[0].Header.Get("LocationId"))
			}

			a, _ := f.store.GetAppointment(context.Background(), "apt_1")
			if a.Title != "Follow-up" || a.CalendarID != before.CalendarID || !a.StartTime.Equal(before.StartTime) {
				t.Fatalf("unexpected row: %+v", a)
			}
			if !a.EndTime.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)) {
				t.Fatalf("end: %v", a.EndTime)
			}
		})
	}
}

func TestUpdateAppointmentResponseBodyWins(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) {
		return http.StatusOK, `{"id":"apt_1","title":"Upstream title"}`
	})
	f.seed(t)
	w, _ := f.do(t, http.MethodPut, "/appointments/apt_1/update/", `{"title":"Local title"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	a, _ := f.store.GetAppointment(context.Background(), "apt_1")
	if a.Title != "Upstream title" {
		t.Fatalf("title: %q", a.Title)
	}
}

func TestDeleteAppointment(t *testing.T) {
	f := setup(t, nil)
	before := f.seed(t)

	w, out := f.do(t, http.MethodDelete, "/appointments/apt_1/delete/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if out["message"] == nil {
		t.Fatalf("body: %v", out)
	}

	calls := f.platform.Calls()
	if len(calls) != 1 || calls[0].Method != http.MethodPut {
		t.Fatalf("calls: %+v", calls)
	}
	if len(calls[0].Body) != 1 || calls[0].Body["appointmentStatus"] != "cancelled" {
		t.Fatalf("cancel payload: %v", calls[0].Body)
	}

	a, _ := f.store.GetAppointment(context.Background(), "apt_1")
	if a.Status != model.StatusCancelled || a.Title != before.Title {
		t.Fatalf("unexpected row: %+v", a)
	}
}

func TestDeleteAppointmentUpstreamFailureKeepsRow(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) { return http.StatusInternalServerError, `boom` })
	f.seed(t)
	w, _ := f.do(t, http.MethodDelete, "/appointments/apt_1/delete/", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	a, _ := f.store.GetAppointment(context.Background(), "apt_1")
	if a.Status != model.StatusConfirmed {
		t.Fatalf("row cancelled despite upstream failure: %q", a.Status)
	}
}

func TestDeleteAppointmentUnknown(t *testing.T) {
	f := setup(t, nil)
	if w, _ := f.do(t, http.MethodDelete, "/appointments/nope/delete/", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

// ----- contacts -----

func TestCreateContact(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{"contact":{"id":"k_new","firstName":"Ana","lastName":"Ruiz","email":"ana@example.com"}}`
	})
	w, out := f.do(t, http.MethodPost, "/contacts/create/", `{"firstName":"Ana","lastName":"Ruiz","phone":"+570000"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	contact, _ := out["contact"].(map[string]any)
	if contact["external_id"] != "k_new" || contact["source"] != "API" {
		t.Fatalf("body: %v", out)
	}
	c, err := f.store.GetContact(context.Background(), "k_new")
	if err != nil {
		t.Fatalf("not stored: %v", err)
	}
	if c.Phone == nil || *c.Phone != "+570000" || c.LocationID != "loc_default" {
		t.Fatalf("unexpected contact: %+v", c)
	}
	if sent := f.platform.Calls()[0]; sent.Path != "/contacts/" || sent.Body["source"] != "API" {
		t.Fatalf("unexpected call: %+v", sent)
	}
}

func TestCreateContactMissingField(t *testing.T) {
	f := setup(t, nil)
	w, out := f.do(t, http.MethodPost, "/contacts/create/", `{"firstName":"Ana"}`)
	if w.Code != http.StatusBadRequest || out["field"] != "lastName" {
		t.Fatalf("got %d %v", w.Code, out)
	}
}

func TestCreateContactDuplicate(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) {
		return http.StatusBadRequest, `{"statusCode":400,"message":"This location does not allow duplicated contacts.","meta":{"contactId":"k_existing","matchingField":"email"}}`
	})
	w, out := f.do(t, http.MethodPost, "/contacts/create/", `{"firstName":"Ana","lastName":"Ruiz","email":"ana@example.com"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if out["existing_contact_id"] != "k_existing" || out["duplicate_field"] != "email" {
		t.Fatalf("body: %v", out)
	}
	if list, _ := f.store.ListContacts(context.Background()); len(list) != 0 {
		t.Fatalf("contact stored on conflict: %+v", list)
	}
}

func TestCreateContactPlainBadRequest(t *testing.T) {
	f := setup(t, func(*http.Request) (int, string) {
		return http.StatusBadRequest, `{"message":"email is invalid"}`
	})
	w, _ := f.do(t, http.MethodPost, "/contacts/create/", `{"firstName":"Ana","lastName":"Ruiz","email":"nope"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

// ----- webhook -----

func TestWebhook(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f := setupOn(t, newStore(t), nil)

			create := `{"type":"AppointmentCreate","appointment":{"id":"apt_w","calendarId":"cal_1","contactId":"k1",
				"startTime":"2024-01-01T10:00:00Z","endTime":"2024-01-01T10:30:00Z"}}`
			w, out := f.do(t, http.MethodPost, "/webhook/ghl/", create)
			if w.Code != http.StatusOK || out["status"] != "created" || out["external_id"] != "apt_w" {
				t.Fatalf("create: %d %v", w.Code, out)
			}
			a, _ := f.store.GetAppointment(context.Background(), "apt_w")
			if a.LocationID != "loc_default" || a.Title != "Appointment" {
				t.Fatalf("row: %+v", a)
			}

			w, out = f.do(t, http.MethodPost, "/webhook/ghl/", create)
			if w.Code != http.StatusOK || out["status"] != "updated" {
				t.Fatalf("replay: %d %v", w.Code, out)
			}
			replayed, _ := f.store.GetAppointment(context.Background(), "apt_w")
			if !replayed.UpdatedAt.Equal(a.UpdatedAt) || replayed.Title != a.Title || !replayed.StartTime.Equal(a.StartTime) {
				t.Fatalf("replay rewrote the row:\nbefore %+v\nafter  %+v", a, replayed)
			}

			update := `{"type":"AppointmentUpdate","id":"apt_w","title":"Moved","endTime":"2024-01-01T11:00:00Z"}`
			w, out = f.do(t, http.MethodPost, "/webhook/ghl/", update)
			if w.Code != http.StatusOK || out["status"] != "updated" {
				t.Fatalf("update: %d %v", w.Code, out)
			}
			a, _ = f.store.GetAppointment(context.Background(), "apt_w")
			if a.Title != "Moved" || a.CalendarID != "cal_1" || !a.StartTime.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) ||
				!a.EndTime.Equal(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)) {
				t.Fatalf("update row: %+v", a)
			}

			w, out = f.do(t, http.MethodPost, "/webhook/ghl/", `{"id":"apt_w"}`, handler.EventHeader, "AppointmentDelete")
			if w.Code != http.StatusOK || out["status"] != "cancelled" {
				t.Fatalf("cancel: %d %v", w.Code, out)
			}
			a, _ = f.store.GetAppointment(context.Background(), "apt_w")
			if a.Status != model.StatusCancelled {
				t.Fatalf("status: %q", a.Status)
			}

			if len(f.platform.Calls()) != 0 {
				t.Fatal("webhook must not call the platform")
			}
		})
	}
}

func TestWebhookRejectsAndIgnores(t *testing.T) {
	f := setup(t, nil)

	w, out := f.do(t, http.MethodPost, "/webhook/ghl/", `{"type":"AppointmentCreate","appointment":{"title":"x"}}`)
	if w.Code != http.StatusBadRequest || out["error"] == nil {
		t.Fatalf("missing id: %d %v", w.Code, out)
	}
	w, _ = f.do(t, http.MethodPost, "/webhook/ghl/", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("not json: %d", w.Code)
	}

	w, out = f.do(t, http.MethodPost, "/webhook/ghl/", `{"type":"InboundMessage","id":"apt_z"}`)
	if w.Code != http.StatusOK || out["status"] != "ignored" || out["event_type"] != "InboundMessage" {
		t.Fatalf("ignored: %d %v", w.Code, out)
	}

	w, out = f.do(t, http.MethodPost, "/webhook/ghl/", `{"type":"AppointmentCreate","id":"apt_z"}`)
	if w.Code != http.StatusBadRequest || out["field"] != "startTime" {
		t.Fatalf("new row without times: %d %v", w.Code, out)
	}
	if list, _ := f.store.ListAppointments(context.Background()); len(list) != 0 {
		t.Fatalf("store mutated: %+v", list)
	}
}

// ----- auth & health -----

func TestAPIRequiresTokenWhenSecretSet(t *testing.T) {
	f := setup(t, nil, withJWT("s3cret"))

	if w, _ := f.do(t, http.MethodGet, "/appointments/", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	tok, _ := auth.MakeToken("ops", "s3cret", time.Hour)
	if w, _ := f.do(t, http.MethodGet, "/appointments/", "", "Authorization", "Bearer "+tok); w.Code != http.StatusOK {
		t.Fatalf("with token: %d", w.Code)
	}
	// the webhook stays public
	w, _ := f.do(t, http.MethodPost, "/webhook/ghl/", `{"type":"Other","id":"x"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	f := setup(t, nil)
	w, out := f.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("health: %d %v", w.Code, out)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}

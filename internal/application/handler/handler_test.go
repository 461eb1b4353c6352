package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"visaflow/internal/application"
	"visaflow/internal/application/service"
	"visaflow/internal/catalog"
	"visaflow/internal/jwttoken"
	"visaflow/internal/platform/middleware"
	"visaflow/internal/uploads"
	"visaflow/pkg/testutil"
)

type handlerEnv struct {
	router  http.Handler
	token   string
	files   *uploads.InMemoryStore
	product *catalog.Product
	nameID  int64
	photoID int64
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogSvc := catalog.NewService(catalog.NewInMemoryStore(), nil, logger, nil)
	product, err := catalogSvc.CreateProduct(ctx, "Schengen Tourist Visa")
	if err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	nameField, err := catalogSvc.AddField(ctx, product.ID, catalog.FieldDefinition{
		Type:         catalog.FieldTypeText,
		Question:     "Full name as in passport",
		Required:     true,
		DisplayOrder: 1,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("failed to add name field: %v", err)
	}
	photoField, err := catalogSvc.AddField(ctx, product.ID, catalog.FieldDefinition{
		Type:             catalog.FieldTypeUpload,
		Question:         "Passport photo",
		DisplayOrder:     2,
		AllowedFileTypes: []string{"png", "jpg"},
		MaxFileSizeMB:    5,
		Active:           true,
	})
	if err != nil {
		t.Fatalf("failed to add photo field: %v", err)
	}

	svc := service.NewService(application.NewInMemoryStore(), catalogSvc, nil, logger, nil)
	files := uploads.NewInMemoryStore()

	jwtService := jwttoken.NewJWTService("test-signing-key", "visaflow-test")
	token, err := jwtService.GenerateAdminToken("officer@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue admin token: %v", err)
	}

	h := New(svc, files, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(jwtService, logger))
		h.RegisterAdmin(admin)
	})

	return &handlerEnv{
		router:  r,
		token:   token,
		files:   files,
		product: product,
		nameID:  nameField.ID,
		photoID: photoField.ID,
	}
}

func (e *handlerEnv) do(t *testing.T, method, path string, payload any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if payload != nil {
		req = testutil.NewJSONRequest(t, method, path, payload)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	return testutil.DoRequest(e.router, req)
}

type applicationResponse struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number"`
	Status string    `json:"status"`
}

func (e *handlerEnv) createApplication(t *testing.T) applicationResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/applications", map[string]string{
		"product_id":  e.product.ID.String(),
		"customer_id": uuid.NewString(),
		"email":       "jane.doe@example.com",
	}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating application, got %d: %s", rec.Code, rec.Body.String())
	}
	var app applicationResponse
	if err := json.NewDecoder(rec.Body).Decode(&app); err != nil {
		t.Fatalf("failed to decode application response: %v", err)
	}
	return app
}

func TestCreateAndFetchApplication(t *testing.T) {
	env := newHandlerEnv(t)

	app := env.createApplication(t)
	if app.ID == uuid.Nil {
		t.Fatalf("expected application id in response")
	}
	if !strings.HasPrefix(app.Number, "VF-") {
		t.Fatalf("expected application number with VF- prefix, got %q", app.Number)
	}
	if app.Status != "draft" {
		t.Fatalf("expected new application in draft, got %q", app.Status)
	}

	rec := env.do(t, http.MethodGet, "/applications/"+app.ID.String(), nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching application, got %d", rec.Code)
	}
	var fetched applicationResponse
	if err := json.NewDecoder(rec.Body).Decode(&fetched); err != nil {
		t.Fatalf("failed to decode application: %v", err)
	}
	if fetched.Number != app.Number {
		t.Fatalf("expected number %q, got %q", app.Number, fetched.Number)
	}
}

func TestCreateApplicationUnknownProduct(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/applications", map[string]string{
		"product_id":  uuid.NewString(),
		"customer_id": uuid.NewString(),
		"email":       "jane.doe@example.com",
	}, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestCreateApplicationMalformedBody(t *testing.T) {
	env := newHandlerEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/applications", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestAddTravelerViaHandler(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.do(t, http.MethodPost, "/applications/"+app.ID.String()+"/travelers",
		map[string]string{"full_name": "Marco Rossi"}, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding traveler, got %d: %s", rec.Code, rec.Body.String())
	}
	var traveler struct {
		ID       int64  `json:"id"`
		FullName string `json:"full_name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&traveler); err != nil {
		t.Fatalf("failed to decode traveler: %v", err)
	}
	if traveler.ID != 2 {
		t.Fatalf("expected first added traveler to get id 2, got %d", traveler.ID)
	}
}

func TestSubmitFullFormResponses(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.do(t, http.MethodPost, "/applications/"+app.ID.String()+"/responses", map[string]any{
		"responses": map[string]any{
			strconv.FormatInt(env.nameID, 10): map[string]string{"value": "Jane Doe"},
			"_passport_number":                map[string]string{"value": "X1234567"},
			"_passport_expiry_date":           map[string]string{"value": "2030-01-01"},
			"_residence_country":              map[string]string{"value": "DE"},
			"_has_schengen_visa":              map[string]string{"value": "no"},
		},
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 submitting responses, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status         string   `json:"status"`
		AcceptedKeys   []string `json:"accepted_keys"`
		FilteredKeys   []string `json:"filtered_keys"`
		StatusAdvanced bool     `json:"status_advanced"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode submission response: %v", err)
	}
	if len(resp.AcceptedKeys) != 5 {
		t.Fatalf("expected 5 accepted keys, got %v", resp.AcceptedKeys)
	}
	if len(resp.FilteredKeys) != 0 {
		t.Fatalf("expected no filtered keys, got %v", resp.FilteredKeys)
	}
	if resp.StatusAdvanced {
		t.Fatalf("full-form submission must not advance the status on its own")
	}
}

func TestSubmitResponsesUnknownField(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.do(t, http.MethodPost, "/applications/"+app.ID.String()+"/responses", map[string]any{
		"responses": map[string]any{
			"9999": map[string]string{"value": "anything"},
		},
	}, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestResubmissionRoundTripViaHandlers(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)
	appPath := "/applications/" + app.ID.String()
	adminPath := "/admin" + appPath

	// Move the application into review so a correction can be requested.
	rec := env.do(t, http.MethodPatch, adminPath+"/status", map[string]string{"status": "submitted"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating status, got %d: %s", rec.Code, rec.Body.String())
	}

	// Open a correction request with a newly minted ad hoc question.
	rec = env.do(t, http.MethodPost, adminPath+"/resubmission", map[string]any{
		"requests": []map[string]any{{
			"target": "application",
			"note":   "bank statement is illegible",
			"new_fields": []map[string]any{{
				"field_type":    "textarea",
				"question":      "Explain the highlighted transactions",
				"is_required":   true,
				"display_order": 1,
			}},
		}},
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 requesting resubmission, got %d: %s", rec.Code, rec.Body.String())
	}
	var opened struct {
		Requests []struct {
			ID       string   `json:"id"`
			FieldIDs []string `json:"field_ids"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&opened); err != nil {
		t.Fatalf("failed to decode resubmission response: %v", err)
	}
	if len(opened.Requests) != 1 || len(opened.Requests[0].FieldIDs) != 1 {
		t.Fatalf("expected one request naming one minted field, got %+v", opened.Requests)
	}
	if opened.Requests[0].FieldIDs[0] != "-1" {
		t.Fatalf("expected first minted ad hoc id -1, got %s", opened.Requests[0].FieldIDs[0])
	}

	// The open request is listed until fulfilled.
	rec = env.do(t, http.MethodGet, adminPath+"/resubmission", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing active requests, got %d", rec.Code)
	}

	// Answering the requested field closes the request and advances the
	// application to processing.
	rec = env.do(t, http.MethodPost, appPath+"/responses", map[string]any{
		"responses": map[string]any{
			"-1": map[string]string{"value": "Salary payments from my employer."},
		},
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 answering the request, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status         string   `json:"status"`
		ClosedRequests []string `json:"closed_requests"`
		StatusAdvanced bool     `json:"status_advanced"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode submission response: %v", err)
	}
	if !resp.StatusAdvanced || resp.Status != "processing" {
		t.Fatalf("expected advance to processing, got advanced=%v status=%q", resp.StatusAdvanced, resp.Status)
	}
	if len(resp.ClosedRequests) != 1 || resp.ClosedRequests[0] != opened.Requests[0].ID {
		t.Fatalf("expected request %s closed, got %v", opened.Requests[0].ID, resp.ClosedRequests)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.do(t, http.MethodPatch, "/admin/applications/"+app.ID.String()+"/status",
		map[string]string{"status": "submitted"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin token, got %d", rec.Code)
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.do(t, http.MethodPatch, "/admin/applications/"+app.ID.String()+"/status",
		map[string]string{"status": "approved"}, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for draft -> approved, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPatch, "/admin/applications/"+app.ID.String()+"/status",
		map[string]string{"status": "tornado"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestAdHocFieldAdminEndpoints(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)
	base := "/admin/applications/" + app.ID.String() + "/adhoc-fields"

	rec := env.do(t, http.MethodPost, base, map[string]any{
		"fields": []map[string]any{{
			"field_type":    "text",
			"question":      "Host's address in the Schengen area",
			"display_order": 1,
		}},
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 adding ad hoc field, got %d: %s", rec.Code, rec.Body.String())
	}
	var minted struct {
		Fields []struct {
			ID int64 `json:"id"`
		} `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&minted); err != nil {
		t.Fatalf("failed to decode ad hoc response: %v", err)
	}
	if len(minted.Fields) != 1 || minted.Fields[0].ID != -1 {
		t.Fatalf("expected minted id -1, got %+v", minted.Fields)
	}

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, minted.Fields[0].ID), nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 removing ad hoc field, got %d", rec.Code)
	}

	// Positive ids never address the ad hoc registry.
	rec = env.do(t, http.MethodDelete, base+"/7", nil, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-negative ad hoc id, got %d", rec.Code)
	}
}

func TestListFieldsViaHandler(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.do(t, http.MethodGet, "/applications/"+app.ID.String()+"/fields?traveler_id=1", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing fields, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Fields []struct {
			Key      string `json:"key"`
			Source   string `json:"source"`
			Editable bool   `json:"editable"`
		} `json:"fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode fields response: %v", err)
	}
	// Passport details are unset, so the pseudo-fields precede the catalog.
	if len(resp.Fields) != 6 {
		t.Fatalf("expected 4 passport + 2 catalog fields, got %d", len(resp.Fields))
	}
	if resp.Fields[0].Key != "_passport_number" || resp.Fields[0].Source != "passport" {
		t.Fatalf("expected passport number first, got %+v", resp.Fields[0])
	}

	rec = env.do(t, http.MethodGet, "/applications/"+app.ID.String()+"/fields?view=interstellar", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown view mode, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/applications/"+app.ID.String()+"/fields?traveler_id=9", nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown traveler scope, got %d", rec.Code)
	}
}

func TestUploadAnswerFile(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.upload(t, app.ID.String(), strconv.FormatInt(env.photoID, 10), "photo.png", []byte("png-bytes"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 uploading file, got %d: %s", rec.Code, rec.Body.String())
	}
	var ref uploads.FileRef
	if err := json.NewDecoder(rec.Body).Decode(&ref); err != nil {
		t.Fatalf("failed to decode file reference: %v", err)
	}
	if !strings.Contains(ref.Path, app.ID.String()) {
		t.Fatalf("expected object path scoped to the application, got %q", ref.Path)
	}
	if _, ok := env.files.Object(ref.Path); !ok {
		t.Fatalf("expected stored object at %q", ref.Path)
	}
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.upload(t, app.ID.String(), strconv.FormatInt(env.photoID, 10), "photo.exe", []byte("mz"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for disallowed extension, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadRejectsNonUploadField(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)

	rec := env.upload(t, app.ID.String(), strconv.FormatInt(env.nameID, 10), "photo.png", []byte("png-bytes"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-upload field, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteApplicationDraftOnly(t *testing.T) {
	env := newHandlerEnv(t)
	app := env.createApplication(t)
	appPath := "/applications/" + app.ID.String()

	rec := env.do(t, http.MethodPatch, "/admin"+appPath+"/status", map[string]string{"status": "submitted"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating status, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, appPath, nil, false)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting a submitted application, got %d", rec.Code)
	}

	// Administrative removal is not bound to draft.
	rec = env.do(t, http.MethodDelete, "/admin"+appPath, nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on administrative removal, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, appPath, nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after removal, got %d", rec.Code)
	}
}

func (e *handlerEnv) upload(t *testing.T, appID, fieldID, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewMultipartRequest(t, "/applications/"+appID+"/uploads",
		map[string]string{"field_id": fieldID}, "file", fileName, content)
	return testutil.DoRequest(e.router, req)
}

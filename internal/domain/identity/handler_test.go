package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/auth"
)

func withRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func newTestServer(roles ...string) (*echo.Echo, *Service) {
	svc, _, _ := newTestService()
	e := echo.New()
	api := e.Group("/api/v1", withRoles(roles...))
	NewHandler(svc).RegisterRoutes(api)
	return e, svc
}

func do(e *echo.Echo, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const patientJSON = `{"first_name":"Maria","last_name":"Lopez","document_type":"CC",` +
	`"document_number":"123","birth_date":"1990-03-14","email":"maria@example.org"}`

func TestHandler_RegisterPatient(t *testing.T) {
	e, _ := newTestServer(auth.RoleFrontDesk)

	rec := do(e, http.MethodPost, "/api/v1/patients", patientJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("ETag") != `W/"1"` {
		t.Errorf("unexpected etag %q", rec.Header().Get("ETag"))
	}

	var body struct {
		Message string `json:"message"`
		Data    struct {
			ID        string `json:"id"`
			FullName  string `json:"full_name"`
			BirthDate string `json:"birth_date"`
			Active    bool   `json:"active"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != "Patient registered successfully" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.Data.FullName != "Maria Lopez" || body.Data.BirthDate != "1990-03-14" || !body.Data.Active {
		t.Errorf("unexpected data %+v", body.Data)
	}
}

func TestHandler_RegisterPatient_ValidationError(t *testing.T) {
	e, _ := newTestServer(auth.RoleFrontDesk)

	rec := do(e, http.MethodPost, "/api/v1/patients", `{"first_name":"Maria"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error  string `json:"error"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Fields) == 0 {
		t.Error("expected field errors")
	}
}

func TestHandler_RegisterPatient_MalformedBody(t *testing.T) {
	e, _ := newTestServer(auth.RoleFrontDesk)
	rec := do(e, http.MethodPost, "/api/v1/patients", `{"first_name":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ViewerCannotWrite(t *testing.T) {
	e, _ := newTestServer(auth.RoleViewer)

	rec := do(e, http.MethodPost, "/api/v1/patients", patientJSON)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec = do(e, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusOK {
		t.Errorf("viewer should read, got %d", rec.Code)
	}
}

func TestHandler_GetPatient(t *testing.T) {
	e, svc := newTestServer(auth.RoleFrontDesk)
	p, err := svc.RegisterPatient(context.Background(), patientDraft("123"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rec := do(e, http.MethodGet, "/api/v1/patients/"+p.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/patients/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/patients/00000000-0000-0000-0000-000000000001", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_UpdatePatient_IfMatch(t *testing.T) {
	e, svc := newTestServer(auth.RoleFrontDesk)
	p, _ := svc.RegisterPatient(context.Background(), patientDraft("123"))
	path := "/api/v1/patients/" + p.ID.String()

	rec := do(e, http.MethodPut, path, patientJSON, "If-Match", `W/"1"`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("ETag") != `W/"2"` {
		t.Errorf("expected version 2 etag, got %q", rec.Header().Get("ETag"))
	}

	rec = do(e, http.MethodPut, path, patientJSON, "If-Match", `W/"1"`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for stale version, got %d", rec.Code)
	}
}

func TestHandler_TogglePatientActive(t *testing.T) {
	e, svc := newTestServer(auth.RoleFrontDesk)
	p, _ := svc.RegisterPatient(context.Background(), patientDraft("123"))
	path := "/api/v1/patients/" + p.ID.String() + "/toggle-active"

	rec := do(e, http.MethodPost, path, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Patient deactivated") {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/v1/patients/inactive", "")
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected patient in inactive list: %s", rec.Body.String())
	}

	rec = do(e, http.MethodPost, path, "")
	if !strings.Contains(rec.Body.String(), "Patient activated") {
		t.Errorf("expected activated message: %s", rec.Body.String())
	}
}

func TestHandler_RegisterDoctor_Duplicate(t *testing.T) {
	e, _ := newTestServer(auth.RoleAdmin)
	body := `{"first_name":"Ana","last_name":"Ruiz","document_type":"CC","document_number":"456","specialty":"Cardiology"}`

	if rec := do(e, http.MethodPost, "/api/v1/doctors", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec := do(e, http.MethodPost, "/api/v1/doctors", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "document_number") {
		t.Errorf("expected document_number field error: %s", rec.Body.String())
	}
}

func TestHandler_ListDoctors_Empty(t *testing.T) {
	e, _ := newTestServer(auth.RoleViewer)
	rec := do(e, http.MethodGet, "/api/v1/doctors", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

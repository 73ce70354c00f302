package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/internal/platform/respond"
	"github.com/ehr/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleViewer))
	read.GET("/patients", h.ListActivePatients)
	read.GET("/patients/inactive", h.ListInactivePatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/doctors", h.ListActiveDoctors)
	read.GET("/doctors/inactive", h.ListInactiveDoctors)
	read.GET("/doctors/:id", h.GetDoctor)

	write := api.Group("", auth.RequireRole(auth.RoleFrontDesk))
	write.POST("/patients", h.RegisterPatient)
	write.PUT("/patients/:id", h.UpdatePatient)
	write.POST("/patients/:id/toggle-active", h.TogglePatientActive)
	write.POST("/doctors", h.RegisterDoctor)
	write.PUT("/doctors/:id", h.UpdateDoctor)
	write.POST("/doctors/:id/toggle-active", h.ToggleDoctorActive)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, respond.BadRequest("invalid id")
	}
	return id, nil
}

// bindVersion applies an If-Match header over the body's version_id.
func bindVersion(c echo.Context, version *int) error {
	v, ok, err := respond.IfMatchVersion(c)
	if err != nil {
		return err
	}
	if ok {
		*version = v
	}
	return nil
}

func activationMessage(kind string, active bool) string {
	if active {
		return kind + " activated"
	}
	return kind + " deactivated"
}

// -- Patient Handlers --

func (h *Handler) RegisterPatient(c echo.Context) error {
	var d PatientDraft
	if err := c.Bind(&d); err != nil {
		return respond.BadRequest("invalid request body")
	}
	p, err := h.svc.RegisterPatient(c.Request().Context(), &d)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, p.VersionID)
	return respond.Message(c, http.StatusCreated, "Patient registered successfully", p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, p.VersionID)
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var d PatientDraft
	if err := c.Bind(&d); err != nil {
		return respond.BadRequest("invalid request body")
	}
	if err := bindVersion(c, &d.VersionID); err != nil {
		return err
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, &d)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, p.VersionID)
	return respond.Message(c, http.StatusOK, "Patient updated successfully", p)
}

func (h *Handler) TogglePatientActive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	active, err := h.svc.TogglePatientActive(c.Request().Context(), id)
	if err != nil {
		return respond.Error(err)
	}
	return respond.Message(c, http.StatusOK, activationMessage("Patient", active),
		map[string]interface{}{"id": id, "active": active})
}

func (h *Handler) ListActivePatients(c echo.Context) error {
	return h.listPatients(c, true)
}

func (h *Handler) ListInactivePatients(c echo.Context) error {
	return h.listPatients(c, false)
}

func (h *Handler) listPatients(c echo.Context, active bool) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), active, pg.Limit, pg.Offset)
	if err != nil {
		return respond.Error(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Doctor Handlers --

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var d DoctorDraft
	if err := c.Bind(&d); err != nil {
		return respond.BadRequest("invalid request body")
	}
	doc, err := h.svc.RegisterDoctor(c.Request().Context(), &d)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, doc.VersionID)
	return respond.Message(c, http.StatusCreated, "Doctor registered successfully", doc)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	doc, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, doc.VersionID)
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var d DoctorDraft
	if err := c.Bind(&d); err != nil {
		return respond.BadRequest("invalid request body")
	}
	if err := bindVersion(c, &d.VersionID); err != nil {
		return err
	}
	doc, err := h.svc.UpdateDoctor(c.Request().Context(), id, &d)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, doc.VersionID)
	return respond.Message(c, http.StatusOK, "Doctor updated successfully", doc)
}

func (h *Handler) ToggleDoctorActive(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	active, err := h.svc.ToggleDoctorActive(c.Request().Context(), id)
	if err != nil {
		return respond.Error(err)
	}
	return respond.Message(c, http.StatusOK, activationMessage("Doctor", active),
		map[string]interface{}{"id": id, "active": active})
}

func (h *Handler) ListActiveDoctors(c echo.Context) error {
	return h.listDoctors(c, true)
}

func (h *Handler) ListInactiveDoctors(c echo.Context) error {
	return h.listDoctors(c, false)
}

func (h *Handler) listDoctors(c echo.Context, active bool) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), active, pg.Limit, pg.Offset)
	if err != nil {
		return respond.Error(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/frontdesk/internal/platform/auth"
	"github.com/ehr/frontdesk/internal/platform/respond"
	"github.com/ehr/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

// NewHandler builds the appointment handler. Offset-less appointment dates
// are read in loc; nil means time.Local.
func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleFrontDesk, auth.RoleViewer))
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/statuses", h.ListStatuses)
	read.GET("/appointments/:id", h.GetAppointment)

	write := api.Group("", auth.RequireRole(auth.RoleFrontDesk))
	write.POST("/appointments", h.CreateAppointment)
	write.PUT("/appointments/:id", h.UpdateAppointment)
	write.POST("/appointments/:id/status", h.ChangeStatus)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, respond.BadRequest("invalid id")
	}
	return id, nil
}

func parseOptionalID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, respond.BadRequest("invalid " + name)
	}
	return &id, nil
}

type appointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	AppointmentDate string    `json:"appointment_date"`
	Notes           *string   `json:"notes"`
	VersionID       int       `json:"version_id,omitempty"`
}

func (h *Handler) bindDraft(c echo.Context) (*AppointmentDraft, error) {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return nil, respond.BadRequest("invalid request body")
	}
	at, err := parseAppointmentTime(req.AppointmentDate, h.loc)
	if err != nil {
		return nil, respond.BadRequest(err.Error())
	}
	return &AppointmentDraft{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		AppointmentDate: at,
		Notes:           req.Notes,
		VersionID:       req.VersionID,
	}, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	d, err := h.bindDraft(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Create(c.Request().Context(), d)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, res.Appointment.VersionID)
	return respond.Message(c, http.StatusCreated, res.Message, res)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, a.VersionID)
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.bindDraft(c)
	if err != nil {
		return err
	}
	if v, ok, err := respond.IfMatchVersion(c); err != nil {
		return err
	} else if ok {
		d.VersionID = v
	}
	a, err := h.svc.Edit(c.Request().Context(), id, d)
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, a.VersionID)
	return respond.Message(c, http.StatusOK, "Appointment updated successfully", a)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return respond.BadRequest("invalid request body")
	}
	a, err := h.svc.ChangeStatus(c.Request().Context(), id, req.Status)
	if errors.Is(err, ErrStatusRequired) {
		return respond.BadRequest(err.Error())
	}
	if err != nil {
		return respond.Error(err)
	}
	respond.SetETag(c, a.VersionID)
	return respond.Message(c, http.StatusOK, "Appointment status changed to "+a.Status, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	var filter ListFilter
	var err error
	if filter.PatientID, err = parseOptionalID(c, "patient_id"); err != nil {
		return err
	}
	if filter.DoctorID, err = parseOptionalID(c, "doctor_id"); err != nil {
		return err
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return respond.Error(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// ListStatuses returns the status vocabulary offered to clients.
func (h *Handler) ListStatuses(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"data": KnownStatuses})
}

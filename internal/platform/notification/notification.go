// Package notification renders email templates, hands them to a sender and
// keeps a bounded in-memory log of every delivery attempt.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Delivery statuses recorded in the log.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// TemplateAppointmentConfirmation is sent once an appointment is booked.
const TemplateAppointmentConfirmation = "appointment-confirmation"

// ErrNotFound is returned when a delivery id is not in the log.
var ErrNotFound = errors.New("notification not found")

// Email is a rendered message ready for a sender.
type Email struct {
	To string
	// ToName is the display name shown with To; empty sends a bare address.
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// EmailSender delivers a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg Email) error
}

// Notification is one delivery attempt as kept in the log.
type Notification struct {
	ID         string            `json:"id"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject"`
	TemplateID string            `json:"template_id,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable email. Placeholders use the {{key}} form; values
// substituted into HTML are escaped.
type Template struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateAppointmentConfirmation,
		Subject: "Appointment confirmation - {{hospital}}",
		Text: "Hello {{patient_first_name}},\n\n" +
			"Your appointment has been scheduled.\n\n" +
			"Doctor: {{doctor_name}}\n" +
			"Specialty: {{specialty}}\n" +
			"Date: {{date}}\n" +
			"Time: {{time}}\n\n" +
			"Please arrive 15 minutes early.\n\n{{hospital}}\n",
		HTML: `<html><body style="font-family: Arial, sans-serif;">` +
			`<h2>Appointment confirmation</h2>` +
			`<p>Hello <strong>{{patient_first_name}}</strong>,</p>` +
			`<p>Your appointment has been scheduled.</p>` +
			`<table>` +
			`<tr><td><strong>Doctor:</strong></td><td>{{doctor_name}}</td></tr>` +
			`<tr><td><strong>Specialty:</strong></td><td>{{specialty}}</td></tr>` +
			`<tr><td><strong>Date:</strong></td><td>{{date}}</td></tr>` +
			`<tr><td><strong>Time:</strong></td><td>{{time}}</td></tr>` +
			`</table>` +
			`<p>Please arrive 15 minutes early.</p>` +
			`<p>{{hospital}}</p>` +
			`</body></html>`,
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and fills its placeholders. Keys present in
// the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (Email, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return Email{}, fmt.Errorf("template %q not found", templateID)
	}

	plain := make([]string, 0, len(data)*2)
	escaped := make([]string, 0, len(data)*2)
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		plain = append(plain, placeholder, v)
		escaped = append(escaped, placeholder, html.EscapeString(v))
	}
	plainR := strings.NewReplacer(plain...)

	return Email{
		Subject:  plainR.Replace(t.Subject),
		TextBody: plainR.Replace(t.Text),
		HTMLBody: strings.NewReplacer(escaped...).Replace(t.HTML),
	}, nil
}

// ---------------------------------------------------------------------------
// Mock Sender (test double)
// ---------------------------------------------------------------------------

// MockEmailSender records calls and optionally fails them.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []Email
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Notification Manager
// ---------------------------------------------------------------------------

// DefaultLogSize is the number of delivery attempts kept by the manager.
const DefaultLogSize = 1000

// NotificationManager renders, sends and logs emails. Failed deliveries are
// recorded but never retried.
type NotificationManager struct {
	sender    EmailSender
	templates *TemplateEngine
	maxLog    int

	mu    sync.RWMutex
	log   map[string]*Notification
	order []string
}

// NewNotificationManager constructs a NotificationManager keeping at most
// maxLog entries (DefaultLogSize when maxLog <= 0).
func NewNotificationManager(sender EmailSender, tpl *TemplateEngine, maxLog int) *NotificationManager {
	if maxLog <= 0 {
		maxLog = DefaultLogSize
	}
	return &NotificationManager{
		sender:    sender,
		templates: tpl,
		maxLog:    maxLog,
		log:       make(map[string]*Notification),
	}
}

// Recipient is an addressee with an optional display name.
type Recipient struct {
	Address string
	Name    string
}

// SendFromTemplate renders templateID with data and sends it to recipient.
// The returned Notification is logged whether or not the send succeeded.
func (m *NotificationManager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string, metadata map[string]string) (*Notification, error) {
	return m.SendTemplateTo(ctx, templateID, data, Recipient{Address: recipient}, metadata)
}

// SendTemplateTo is SendFromTemplate with a named recipient.
func (m *NotificationManager) SendTemplateTo(ctx context.Context, templateID string, data map[string]string, to Recipient, metadata map[string]string) (*Notification, error) {
	msg, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	msg.To = to.Address
	msg.ToName = to.Name

	n := &Notification{
		ID:         uuid.NewString(),
		Recipient:  to.Address,
		Subject:    msg.Subject,
		TemplateID: templateID,
		CreatedAt:  time.Now().UTC(),
		Metadata:   metadata,
	}

	sendErr := m.sender.SendEmail(ctx, msg)
	if sendErr != nil {
		n.Status = StatusFailed
		n.Error = sendErr.Error()
	} else {
		n.Status = StatusSent
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.record(n)
	return n, sendErr
}

func (m *NotificationManager) record(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log[n.ID] = n
	m.order = append(m.order, n.ID)
	for len(m.order) > m.maxLog {
		delete(m.log, m.order[0])
		m.order = m.order[1:]
	}
}

// GetNotification retrieves a delivery by ID.
func (m *NotificationManager) GetNotification(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.log[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q: %w", id, ErrNotFound)
	}
	return n, nil
}

// ListByRecipient returns the newest deliveries to recipient, up to limit.
// Recipients are compared case-insensitively.
func (m *NotificationManager) ListByRecipient(_ context.Context, recipient string, limit int) []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Notification
	for i := len(m.order) - 1; i >= 0 && len(result) < limit; i-- {
		n := m.log[m.order[i]]
		if strings.EqualFold(n.Recipient, recipient) {
			result = append(result, n)
		}
	}
	return result
}

// NotificationStats returns counts of logged deliveries grouped by status.
func (m *NotificationManager) NotificationStats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]int{StatusSent: 0, StatusFailed: 0}
	for _, n := range m.log {
		stats[n.Status]++
	}
	return stats
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// NotificationHandler exposes the delivery log over HTTP.
type NotificationHandler struct {
	manager *NotificationManager
}

func NewNotificationHandler(mgr *NotificationManager) *NotificationHandler {
	return &NotificationHandler{manager: mgr}
}

// RegisterRoutes registers the read-only delivery log routes.
func (h *NotificationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.GET("/notifications", h.HandleList)
}

// HandleGet handles GET /notifications/:id.
func (h *NotificationHandler) HandleGet(c echo.Context) error {
	n, err := h.manager.GetNotification(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=...&limit=...
func (h *NotificationHandler) HandleList(c echo.Context) error {
	recipient := strings.TrimSpace(c.QueryParam("recipient"))
	if recipient == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "recipient query parameter is required"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	list := h.manager.ListByRecipient(c.Request().Context(), recipient, limit)
	if list == nil {
		list = []*Notification{}
	}
	return c.JSON(http.StatusOK, list)
}

// HandleStats handles GET /notifications/stats.
func (h *NotificationHandler) HandleStats(c echo.Context) error {
	stats := h.manager.NotificationStats(c.Request().Context())
	total := 0
	for _, n := range stats {
		total += n
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"total": total, "by_status": stats})
}

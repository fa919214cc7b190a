package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category represents the type of audit event.
type Category string

const (
	CategoryAuth     Category = "auth"
	CategoryEmployee Category = "employee"
	CategoryCompany  Category = "company"
	CategoryLead     Category = "lead"
	CategoryFollowUp Category = "followup"
	CategoryCustomer Category = "customer"
	CategoryDeal     Category = "deal"
	CategoryAMS      Category = "ams"
	CategorySystem   Category = "system"
)

// Action represents the action that occurred.
type Action string

const (
	ActionCreate        Action = "create"
	ActionUpdate        Action = "update"
	ActionDelete        Action = "delete"
	ActionLogin         Action = "login"
	ActionLoginFailed   Action = "login_failed"
	ActionLockout       Action = "lockout"
	ActionLogout        Action = "logout"
	ActionPasswordReset Action = "password_reset"
	ActionStatusChange  Action = "status_change"
	ActionAssign        Action = "assign"
	ActionUpload        Action = "upload"
	ActionExport        Action = "export"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit log entry within a company.
type Event struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorID      string    `json:"actor_id"`
	ActorEmail   string    `json:"actor_email"`
	ActorRole    string    `json:"actor_role"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
}

// Actor identifies who performed an audited action.
type Actor struct {
	CompanyID string
	ID        string
	Email     string
	Role      string
}

// NewEvent creates a new audit event stamped at now.
// PRE: actor.CompanyID and action are non-empty
// POST: Returns an info-level Event with a fresh ID
func NewEvent(actor Actor, category Category, action Action, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		CompanyID:  actor.CompanyID,
		Timestamp:  now.UTC(),
		Category:   category,
		Action:     action,
		Severity:   SeverityInfo,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
	}
}

// WithSeverity sets the severity level.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets resource information.
// PRE: resourceType and resourceID are non-empty
// POST: Event resource fields are populated
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithRequest sets IP address and user agent from HTTP request.
func (e Event) WithRequest(ipAddress, userAgent string) Event {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

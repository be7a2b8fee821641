// Package bugs implements the bug tracker's central resource: reporting,
// scoped listing, field-filtered updates, assignment and the resolve/close
// lifecycle. Every operation takes the caller's resolved rule set and decides
// against the loaded row, so route guards stay coarse and the row-level answer
// is authoritative.
package bugs

import (
	"strconv"
	"time"

	"github.com/bugtrap/bugtrap/internal/authz"
)

// Status is the lifecycle state of a bug report.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
	StatusReopened   Status = "Reopened"
)

// KnownStatus reports whether s is a recognised lifecycle state.
func KnownStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed, StatusReopened:
		return true
	}
	return false
}

// Priority ranks how urgently a bug needs attention.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// KnownPriority reports whether p is a recognised priority.
func KnownPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Bug represents one bug report.
type Bug struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ExpectedBehavior string    `json:"expected_behavior"`
	ActualBehavior   string    `json:"actual_behavior"`
	Status           Status    `json:"status"`
	Priority         Priority  `json:"priority"`
	ReportedBy       int64     `json:"reported_by"`
	ReporterName     string    `json:"reporter_name,omitempty"`
	AssignedTo       *int64    `json:"assigned_to"`
	AssigneeName     string    `json:"assignee_name,omitempty"`
	Attachments      []string  `json:"attachments"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Resource projects the bug into the shape capability checks operate on.
func (b Bug) Resource() authz.Resource {
	res := authz.Resource{
		Type:       authz.ResourceBug,
		ID:         strconv.FormatInt(b.ID, 10),
		ReportedBy: strconv.FormatInt(b.ReportedBy, 10),
	}
	if b.AssignedTo != nil {
		res.AssignedTo = strconv.FormatInt(*b.AssignedTo, 10)
	}
	return res
}

// Writable field names accepted by Update. They double as the field labels
// the capability rules constrain.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldExpectedBehavior = "expected_behavior"
	FieldActualBehavior   = "actual_behavior"
	FieldStatus           = "status"
	FieldPriority         = "priority"
	FieldAttachments      = "attachments"
)

// Access summarises what the caller may do with one bug, for UI consumption.
type Access struct {
	Update  bool `json:"update"`
	Delete  bool `json:"delete"`
	Resolve bool `json:"resolve"`
	Assign  bool `json:"assign"`
	Close   bool `json:"close"`
	Reopen  bool `json:"reopen"`
}

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type FaultStatus string

const (
	FaultStatusOpen FaultStatus = "OPEN"
	// FaultStatusAssigned is derived from a matching assignment and never written to the fault log.
	FaultStatusAssigned     FaultStatus = "ASSIGNED"
	FaultStatusNeedsRevisit FaultStatus = "NEEDS_REVISIT"
	FaultStatusDone         FaultStatus = "DONE"
)

// ParseFaultStatus reads the status cell of the fault log. Unknown values are
// treated as OPEN so that a mistyped row stays visible on the dashboard.
func ParseFaultStatus(raw string) FaultStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	switch key {
	case "needs-revisit", "revisit":
		return FaultStatusNeedsRevisit
	case "done", "closed", "completed":
		return FaultStatusDone
	default:
		return FaultStatusOpen
	}
}

// SheetValue is the spelling stored in the fault log status column.
func (s FaultStatus) SheetValue() string {
	switch s {
	case FaultStatusAssigned:
		return "Assigned"
	case FaultStatusNeedsRevisit:
		return "Needs-Revisit"
	case FaultStatusDone:
		return "Done"
	default:
		return "Open"
	}
}

func (s FaultStatus) IsActive() bool {
	return s == FaultStatusOpen || s == FaultStatusNeedsRevisit || s == FaultStatusAssigned
}

// CanTransition reports whether a stored status may move to target.
// DONE is terminal; OPEN is only ever set by reporting a fault.
func (s FaultStatus) CanTransition(target FaultStatus) bool {
	if !s.IsActive() {
		return false
	}
	return target == FaultStatusDone || target == FaultStatusNeedsRevisit
}

type Fault struct {
	RowNumber    int         `json:"-"`
	ID           uuid.UUID   `json:"id"`
	ReportedAt   string      `json:"reported_at"`
	StationName  string      `json:"station"`
	Description  string      `json:"description"`
	Status       FaultStatus `json:"status"`
	Technician   string      `json:"technician_cached,omitempty"`
	TicketNumber string      `json:"ticket_number,omitempty"`
}

func (f Fault) ReportedTime() (time.Time, bool) {
	return ParseTimestamp(f.ReportedAt)
}

// SameSubject compares the (station, description) pair that legacy rows use as a key.
func (f Fault) SameSubject(station, description string) bool {
	return strings.TrimSpace(f.StationName) == strings.TrimSpace(station) &&
		strings.TrimSpace(f.Description) == strings.TrimSpace(description)
}

// FaultView is the fault aggregate: the stored row, its current assignment and the derived state.
type FaultView struct {
	Fault
	State              FaultStatus `json:"state"`
	Assignment         *Assignment `json:"assignment,omitempty"`
	AssignedTechnician string      `json:"assigned_technician"`
}

func NewFaultView(f Fault, a *Assignment) FaultView {
	view := FaultView{Fault: f, State: f.Status}
	if a != nil {
		assigned := *a
		view.Assignment = &assigned
		view.AssignedTechnician = a.Technician
		if f.Status.IsActive() {
			view.State = FaultStatusAssigned
		}
	}
	return view
}

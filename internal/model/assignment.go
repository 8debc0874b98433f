package model

import (
	"strings"

	"github.com/google/uuid"
)

type Assignment struct {
	RowNumber   int       `json:"-"`
	Technician  string    `json:"technician"`
	StationName string    `json:"station"`
	ScheduledAt string    `json:"scheduled_at"`
	Task        string    `json:"task"`
	FaultID     uuid.UUID `json:"fault_id"`
}

// Matches links an assignment row to a fault. Rows carrying both identifiers
// are compared by id; anything older falls back to station + task text.
func (a Assignment) Matches(f Fault) bool {
	if a.FaultID != uuid.Nil && f.ID != uuid.Nil {
		return a.FaultID == f.ID
	}
	return a.MatchesText(f.StationName, f.Description)
}

func (a Assignment) MatchesText(station, task string) bool {
	return strings.TrimSpace(a.StationName) == strings.TrimSpace(station) &&
		strings.TrimSpace(a.Task) == strings.TrimSpace(task)
}

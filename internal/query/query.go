// Package query derives dashboard views from a snapshot of the dispatch tables.
// Every function is pure: same snapshot in, same result out.
package query

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

// ActiveFaults returns faults whose stored status is OPEN or NEEDS_REVISIT,
// oldest report first. Rows with an unparseable timestamp keep their sheet
// order after all dated rows.
func ActiveFaults(s model.Snapshot) []model.Fault {
	out := make([]model.Fault, 0, len(s.Faults))
	for _, f := range s.Faults {
		if f.Status.IsActive() {
			out = append(out, f)
		}
	}
	SortByReportTime(out)
	return out
}

func SortByReportTime(faults []model.Fault) {
	sort.SliceStable(faults, func(i, j int) bool {
		ti, okI := faults[i].ReportedTime()
		tj, okJ := faults[j].ReportedTime()
		switch {
		case okI && okJ:
			return ti.Before(tj)
		case okI != okJ:
			return okI
		default:
			return false
		}
	})
}

// AssignmentFor returns the last assignment row for the (station, task) pair.
// The assignment log is append-only, so the highest row wins.
func AssignmentFor(s model.Snapshot, station, task string) (model.Assignment, bool) {
	for i := len(s.Assignments) - 1; i >= 0; i-- {
		if s.Assignments[i].MatchesText(station, task) {
			return s.Assignments[i], true
		}
	}
	return model.Assignment{}, false
}

// AssignmentForFault is AssignmentFor keyed by fault id where the rows carry one.
func AssignmentForFault(s model.Snapshot, f model.Fault) (model.Assignment, bool) {
	for i := len(s.Assignments) - 1; i >= 0; i-- {
		if s.Assignments[i].Matches(f) {
			return s.Assignments[i], true
		}
	}
	return model.Assignment{}, false
}

func MatchingAssignments(s model.Snapshot, f model.Fault) []model.Assignment {
	var out []model.Assignment
	for _, a := range s.Assignments {
		if a.Matches(f) {
			out = append(out, a)
		}
	}
	return out
}

func RowNumbers(assignments []model.Assignment) []int {
	rows := make([]int, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, a.RowNumber)
	}
	return rows
}

func FindFault(s model.Snapshot, id uuid.UUID) (model.Fault, bool) {
	if id == uuid.Nil {
		return model.Fault{}, false
	}
	for _, f := range s.Faults {
		if f.ID == id {
			return f, true
		}
	}
	return model.Fault{}, false
}

// FindActiveFaultBySubject returns the first active fault for a (station, description) pair.
func FindActiveFaultBySubject(s model.Snapshot, station, description string) (model.Fault, bool) {
	for _, f := range s.Faults {
		if f.Status.IsActive() && f.SameSubject(station, description) {
			return f, true
		}
	}
	return model.Fault{}, false
}

// FindStation resolves a station by name; with duplicate names the first row wins.
func FindStation(s model.Snapshot, name string) (model.Station, bool) {
	name = strings.TrimSpace(name)
	for _, st := range s.Stations {
		if st.Name == name {
			return st, true
		}
	}
	return model.Station{}, false
}

func FindTechnician(s model.Snapshot, name string) (model.Technician, bool) {
	name = strings.TrimSpace(name)
	for _, t := range s.Technicians {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return model.Technician{}, false
}

func FaultView(s model.Snapshot, f model.Fault) model.FaultView {
	if !f.Status.IsActive() {
		return model.NewFaultView(f, nil)
	}
	if a, ok := AssignmentForFault(s, f); ok {
		return model.NewFaultView(f, &a)
	}
	return model.NewFaultView(f, nil)
}

type FaultFilter struct {
	IncludeDone bool
	Station     string
}

func FaultViews(s model.Snapshot, filter FaultFilter) []model.FaultView {
	var faults []model.Fault
	if filter.IncludeDone {
		faults = append(faults, s.Faults...)
		SortByReportTime(faults)
	} else {
		faults = ActiveFaults(s)
	}

	station := strings.TrimSpace(filter.Station)
	views := make([]model.FaultView, 0, len(faults))
	for _, f := range faults {
		if station != "" && f.StationName != station {
			continue
		}
		views = append(views, FaultView(s, f))
	}
	return views
}

// StationSummary aggregates active faults per station name. Every station row
// gets an entry; duplicate names take the brand of their first row.
func StationSummary(s model.Snapshot) map[string]model.StationSummary {
	out := make(map[string]model.StationSummary, len(s.Stations))
	for _, st := range s.Stations {
		if _, ok := out[st.Name]; ok {
			continue
		}
		out[st.Name] = model.StationSummary{Brand: st.Brand}
	}

	for _, f := range ActiveFaults(s) {
		summary, ok := out[f.StationName]
		if !ok {
			continue
		}
		summary.Count++
		switch f.Status {
		case model.FaultStatusNeedsRevisit:
			summary.HasRevisit = true
		default:
			summary.HasOpen = true
		}
		if _, assigned := AssignmentForFault(s, f); assigned {
			summary.HasAssignment = true
		}
		out[f.StationName] = summary
	}
	return out
}

// MapMarkers lists the stations that have a fill colour, in station sheet order.
func MapMarkers(s model.Snapshot) []model.MapMarker {
	summary := StationSummary(s)
	seen := make(map[string]bool, len(s.Stations))
	markers := make([]model.MapMarker, 0, len(s.Stations))
	for _, st := range s.Stations {
		if seen[st.Name] {
			continue
		}
		seen[st.Name] = true

		sum := summary[st.Name]
		fill, border := sum.Colors()
		if fill == model.FillNone {
			continue
		}
		markers = append(markers, model.MapMarker{
			Station:   st.Name,
			Latitude:  st.Latitude,
			Longitude: st.Longitude,
			Brand:     st.Brand,
			Count:     sum.Count,
			Fill:      fill,
			Border:    border,
		})
	}
	return markers
}

package query

import (
	"testing"

	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

func fault(row int, reported, station, desc string, status model.FaultStatus) model.Fault {
	return model.Fault{
		RowNumber:   row,
		ID:          uuid.New(),
		ReportedAt:  reported,
		StationName: station,
		Description: desc,
		Status:      status,
	}
}

func TestActiveFaultsFiltersAndSorts(t *testing.T) {
	snap := model.Snapshot{Faults: []model.Fault{
		fault(2, "2024-05-03 10:00", "X", "late", model.FaultStatusOpen),
		fault(3, "garbage", "X", "undated", model.FaultStatusOpen),
		fault(4, "2024-05-01 09:00", "X", "done", model.FaultStatusDone),
		fault(5, "2024-05-01 08:00", "Y", "early", model.FaultStatusNeedsRevisit),
		fault(6, "", "Y", "blank", model.FaultStatusOpen),
	}}

	got := ActiveFaults(snap)
	want := []string{"early", "late", "undated", "blank"}
	if len(got) != len(want) {
		t.Fatalf("expected %d active faults, got %d", len(want), len(got))
	}
	for i, desc := range want {
		if got[i].Description != desc {
			t.Fatalf("position %d: expected %q, got %q", i, desc, got[i].Description)
		}
	}
}

func TestAssignmentForLastMatchWins(t *testing.T) {
	snap := model.Snapshot{Assignments: []model.Assignment{
		{RowNumber: 2, Technician: "Tech A", StationName: "X", Task: "Pump leak"},
		{RowNumber: 3, Technician: "Tech B", StationName: "Y", Task: "Pump leak"},
		{RowNumber: 4, Technician: "Tech C", StationName: "X", Task: "Pump leak"},
	}}

	a, ok := AssignmentFor(snap, "X", "Pump leak")
	if !ok {
		t.Fatal("expected a match")
	}
	if a.Technician != "Tech C" {
		t.Fatalf("expected last row to win, got %s", a.Technician)
	}
	if _, ok := AssignmentFor(snap, "X", "Other"); ok {
		t.Fatal("unexpected match for other task")
	}
}

func TestAssignmentForFaultPrefersID(t *testing.T) {
	f := fault(2, "2024-05-01 08:00", "X", "Pump leak", model.FaultStatusOpen)
	other := uuid.New()
	snap := model.Snapshot{
		Faults: []model.Fault{f},
		Assignments: []model.Assignment{
			{RowNumber: 2, Technician: "legacy", StationName: "X", Task: "Pump leak"},
			{RowNumber: 3, Technician: "linked", StationName: "X", Task: "renamed", FaultID: f.ID},
			{RowNumber: 4, Technician: "foreign", StationName: "X", Task: "Pump leak", FaultID: other},
		},
	}

	a, ok := AssignmentForFault(snap, f)
	if !ok || a.Technician != "linked" {
		t.Fatalf("expected id-linked assignment, got %+v (ok=%v)", a, ok)
	}

	rows := RowNumbers(MatchingAssignments(snap, f))
	if len(rows) != 2 || rows[0] != 2 || rows[1] != 3 {
		t.Fatalf("unexpected matching rows: %v", rows)
	}
}

func TestFaultViewDerivesAssignedState(t *testing.T) {
	open := fault(2, "2024-05-01 08:00", "X", "Pump leak", model.FaultStatusOpen)
	open.Technician = "stale"
	done := fault(3, "2024-05-01 09:00", "X", "Nozzle", model.FaultStatusDone)
	snap := model.Snapshot{
		Faults: []model.Fault{open, done},
		Assignments: []model.Assignment{
			{RowNumber: 2, Technician: "Tech A", StationName: "X", Task: "Pump leak", FaultID: open.ID},
			{RowNumber: 3, Technician: "Tech B", StationName: "X", Task: "Nozzle"},
		},
	}

	views := FaultViews(snap, FaultFilter{IncludeDone: true})
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].State != model.FaultStatusAssigned || views[0].AssignedTechnician != "Tech A" {
		t.Fatalf("unexpected open view: %+v", views[0])
	}
	if views[0].Status != model.FaultStatusOpen {
		t.Fatalf("stored status must stay OPEN, got %s", views[0].Status)
	}
	if views[1].State != model.FaultStatusDone || views[1].Assignment != nil {
		t.Fatalf("done fault must not show an assignment: %+v", views[1])
	}

	active := FaultViews(snap, FaultFilter{Station: "Y"})
	if len(active) != 0 {
		t.Fatalf("expected no faults at Y, got %d", len(active))
	}
}

func TestStationSummaryRevisitAndOpenIsBrown(t *testing.T) {
	snap := model.Snapshot{
		Stations: []model.Station{{RowNumber: 2, ID: "1", Name: "Station X", Brand: "BRAND_A"}},
		Faults: []model.Fault{
			fault(2, "2024-05-01 08:00", "Station X", "Pump leak", model.FaultStatusOpen),
			fault(3, "2024-05-01 09:00", "Station X", "Canopy light", model.FaultStatusNeedsRevisit),
		},
	}

	sum := StationSummary(snap)["Station X"]
	if sum.Count != 2 || !sum.HasOpen || !sum.HasRevisit || sum.HasAssignment {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	fill, border := sum.Colors()
	if fill != model.FillRevisitAndOpen {
		t.Fatalf("expected brown fill, got %q", fill)
	}
	if border != model.BorderGreen {
		t.Fatalf("expected green border, got %q", border)
	}
}

func TestStationSummaryCountMatchesActiveFaults(t *testing.T) {
	f1 := fault(2, "2024-05-01 08:00", "A", "one", model.FaultStatusOpen)
	snap := model.Snapshot{
		Stations: []model.Station{{Name: "A", Brand: "BRAND_B"}, {Name: "B"}, {Name: "C"}},
		Faults: []model.Fault{
			f1,
			fault(3, "2024-05-02 08:00", "A", "two", model.FaultStatusDone),
			fault(4, "2024-05-03 08:00", "B", "three", model.FaultStatusNeedsRevisit),
			fault(5, "2024-05-04 08:00", "A", "four", model.FaultStatusNeedsRevisit),
			fault(6, "2024-05-05 08:00", "Unregistered", "five", model.FaultStatusOpen),
		},
		Assignments: []model.Assignment{
			{Technician: "T", StationName: "A", Task: "one", FaultID: f1.ID},
			{Technician: "T", StationName: "C", Task: "general duty"},
		},
	}

	summary := StationSummary(snap)
	active := ActiveFaults(snap)
	for _, st := range snap.Stations {
		n := 0
		for _, f := range active {
			if f.StationName == st.Name {
				n++
			}
		}
		if summary[st.Name].Count != n {
			t.Fatalf("station %s: summary count %d, active faults %d", st.Name, summary[st.Name].Count, n)
		}
	}
	if !summary["A"].HasAssignment {
		t.Fatal("station A has an assigned active fault")
	}
	if summary["C"].HasAssignment {
		t.Fatal("free-text duty without an active fault must not mark the station as scheduled")
	}
	if _, ok := summary["Unregistered"]; ok {
		t.Fatal("faults at unknown stations must not create summary entries")
	}
}

func TestDuplicateStationNamesTieBreakToFirstRow(t *testing.T) {
	snap := model.Snapshot{
		Stations: []model.Station{
			{RowNumber: 2, ID: "1", Name: "Station X", Brand: "BRAND_A", Latitude: 1, Longitude: 1},
			{RowNumber: 3, ID: "2", Name: "Station X", Brand: "BRAND_B", Latitude: 2, Longitude: 2},
		},
		Faults: []model.Fault{fault(2, "2024-05-01 08:00", "Station X", "Pump leak", model.FaultStatusOpen)},
	}

	st, ok := FindStation(snap, "Station X")
	if !ok || st.ID != "1" {
		t.Fatalf("expected first station row, got %+v", st)
	}
	if brand := StationSummary(snap)["Station X"].Brand; brand != "BRAND_A" {
		t.Fatalf("expected first row brand, got %s", brand)
	}

	markers := MapMarkers(snap)
	if len(markers) != 1 {
		t.Fatalf("expected a single marker for duplicate names, got %d", len(markers))
	}
	if markers[0].Latitude != 1 || markers[0].Fill != model.FillOpen || markers[0].Border != model.BorderGreen {
		t.Fatalf("unexpected marker: %+v", markers[0])
	}
}

func TestMapMarkersSkipQuietStations(t *testing.T) {
	f := fault(2, "2024-05-01 08:00", "Busy", "Pump leak", model.FaultStatusOpen)
	snap := model.Snapshot{
		Stations: []model.Station{{Name: "Quiet", Brand: "Other"}, {Name: "Busy", Brand: "Other"}},
		Faults:   []model.Fault{f},
		Assignments: []model.Assignment{
			{Technician: "Tech A", StationName: "Busy", Task: "Pump leak"},
		},
	}

	markers := MapMarkers(snap)
	if len(markers) != 1 || markers[0].Station != "Busy" {
		t.Fatalf("unexpected markers: %+v", markers)
	}
	if markers[0].Fill != model.FillScheduled || markers[0].Border != model.BorderBlue {
		t.Fatalf("unexpected colours: %+v", markers[0])
	}
}

func TestFindActiveFaultBySubjectIgnoresDone(t *testing.T) {
	snap := model.Snapshot{Faults: []model.Fault{
		fault(2, "2024-05-01 08:00", "X", "Pump leak", model.FaultStatusDone),
	}}
	if _, ok := FindActiveFaultBySubject(snap, "X", "Pump leak"); ok {
		t.Fatal("done fault must not count as active")
	}
	if _, ok := FindFault(snap, uuid.Nil); ok {
		t.Fatal("nil id must not resolve")
	}
}

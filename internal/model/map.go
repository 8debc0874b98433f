package model

type FillColor string

const (
	FillScheduled      FillColor = "green"
	FillRevisit        FillColor = "yellow"
	FillRevisitAndOpen FillColor = "brown"
	FillOpen           FillColor = "red"
	FillNone           FillColor = ""
)

type BorderColor string

const (
	BorderGreen BorderColor = "green"
	BorderRed   BorderColor = "red"
	BorderBlue  BorderColor = "blue"
)

// MarkerFill derives the station fill from its summary flags.
// A scheduled visit wins over everything else.
func MarkerFill(hasAssignment, hasRevisit, hasOpen bool) FillColor {
	switch {
	case hasAssignment:
		return FillScheduled
	case hasRevisit && hasOpen:
		return FillRevisitAndOpen
	case hasRevisit:
		return FillRevisit
	case hasOpen:
		return FillOpen
	default:
		return FillNone
	}
}

func MarkerBorder(brand string) BorderColor {
	switch NormalizeBrand(brand) {
	case BrandA:
		return BorderGreen
	case BrandB:
		return BorderRed
	default:
		return BorderBlue
	}
}

func MarkerColors(hasAssignment, hasRevisit, hasOpen bool, brand string) (FillColor, BorderColor) {
	return MarkerFill(hasAssignment, hasRevisit, hasOpen), MarkerBorder(brand)
}

type StationSummary struct {
	Count         int    `json:"count"`
	HasOpen       bool   `json:"has_open"`
	HasRevisit    bool   `json:"has_revisit"`
	HasAssignment bool   `json:"has_assignment"`
	Brand         string `json:"brand"`
}

func (s StationSummary) Colors() (FillColor, BorderColor) {
	return MarkerColors(s.HasAssignment, s.HasRevisit, s.HasOpen, s.Brand)
}

type MapMarker struct {
	Station   string      `json:"station"`
	Latitude  float64     `json:"lat"`
	Longitude float64     `json:"lon"`
	Brand     string      `json:"brand"`
	Count     int         `json:"count"`
	Fill      FillColor   `json:"fill"`
	Border    BorderColor `json:"border"`
}

// Snapshot holds one consistent read of the four dispatch tables.
type Snapshot struct {
	Stations    []Station
	Faults      []Fault
	Technicians []Technician
	Assignments []Assignment
}

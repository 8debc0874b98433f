package sheet

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"dispatch-service/internal/model"
)

func DecodeStations(s *Sheet) []model.Station {
	out := make([]model.Station, 0, len(s.Rows))
	for i, row := range s.Rows {
		name := s.Columns.Get(row, FieldName)
		if name == "" {
			continue
		}
		out = append(out, model.Station{
			RowNumber: s.RowNumber(i),
			ID:        s.Columns.Get(row, FieldID),
			Name:      name,
			Brand:     s.Columns.Get(row, FieldBrand),
			Latitude:  parseCoordinate(s.Columns.Get(row, FieldLatitude)),
			Longitude: parseCoordinate(s.Columns.Get(row, FieldLongitude)),
		})
	}
	return out
}

func DecodeFaults(s *Sheet) []model.Fault {
	out := make([]model.Fault, 0, len(s.Rows))
	for i, row := range s.Rows {
		station := s.Columns.Get(row, FieldStation)
		description := s.Columns.Get(row, FieldDescription)
		if station == "" && description == "" {
			continue
		}
		out = append(out, model.Fault{
			RowNumber:    s.RowNumber(i),
			ID:           parseID(s.Columns.Get(row, FieldID)),
			ReportedAt:   s.Columns.Get(row, FieldReportedAt),
			StationName:  station,
			Description:  description,
			Status:       model.ParseFaultStatus(s.Columns.Get(row, FieldStatus)),
			Technician:   s.Columns.Get(row, FieldTechnician),
			TicketNumber: s.Columns.Get(row, FieldTicket),
		})
	}
	return out
}

func DecodeTechnicians(s *Sheet) []model.Technician {
	out := make([]model.Technician, 0, len(s.Rows))
	for i, row := range s.Rows {
		name := s.Columns.Get(row, FieldName)
		if name == "" {
			continue
		}
		out = append(out, model.Technician{RowNumber: s.RowNumber(i), Name: name})
	}
	return out
}

func DecodeAssignments(s *Sheet) []model.Assignment {
	out := make([]model.Assignment, 0, len(s.Rows))
	for i, row := range s.Rows {
		station := s.Columns.Get(row, FieldStation)
		task := s.Columns.Get(row, FieldTask)
		if station == "" && task == "" {
			continue
		}
		out = append(out, model.Assignment{
			RowNumber:   s.RowNumber(i),
			Technician:  s.Columns.Get(row, FieldTechnician),
			StationName: station,
			ScheduledAt: s.Columns.Get(row, FieldScheduledAt),
			Task:        task,
			FaultID:     parseID(s.Columns.Get(row, FieldFaultID)),
		})
	}
	return out
}

func StationRecord(st model.Station) Record {
	return Record{
		FieldID:        st.ID,
		FieldName:      st.Name,
		FieldLatitude:  strconv.FormatFloat(st.Latitude, 'f', -1, 64),
		FieldLongitude: strconv.FormatFloat(st.Longitude, 'f', -1, 64),
		FieldBrand:     st.Brand,
	}
}

func FaultRecord(f model.Fault) Record {
	return Record{
		FieldReportedAt:  f.ReportedAt,
		FieldStation:     f.StationName,
		FieldDescription: f.Description,
		FieldStatus:      f.Status.SheetValue(),
		FieldTechnician:  f.Technician,
		FieldTicket:      f.TicketNumber,
		FieldID:          formatID(f.ID),
	}
}

func TechnicianRecord(t model.Technician) Record {
	return Record{FieldName: t.Name}
}

func AssignmentRecord(a model.Assignment) Record {
	return Record{
		FieldTechnician:  a.Technician,
		FieldStation:     a.StationName,
		FieldScheduledAt: a.ScheduledAt,
		FieldTask:        a.Task,
		FieldFaultID:     formatID(a.FaultID),
	}
}

func parseID(raw string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func formatID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// parseCoordinate accepts both decimal point and decimal comma.
func parseCoordinate(raw string) float64 {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

package sheet

import (
	"sort"
	"strings"
)

type Table string

const (
	TableStations    Table = "Stations"
	TableFaults      Table = "Fault Log"
	TableTechnicians Table = "Technicians"
	TableAssignments Table = "Assignments"
)

// Tables lists every logical table in load order.
var Tables = []Table{TableStations, TableFaults, TableTechnicians, TableAssignments}

type Field string

const (
	FieldID          Field = "id"
	FieldName        Field = "name"
	FieldLatitude    Field = "lat"
	FieldLongitude   Field = "lon"
	FieldBrand       Field = "brand"
	FieldReportedAt  Field = "reported_at"
	FieldStation     Field = "station"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldTechnician  Field = "technician"
	FieldTicket      Field = "ticket"
	FieldScheduledAt Field = "scheduled_at"
	FieldTask        Field = "task"
	FieldFaultID     Field = "fault_id"
)

// Record is one row keyed by logical field.
type Record map[Field]string

type column struct {
	field    Field
	header   string
	position int
	hints    []string
	// trailing columns are added by the service to existing sheets; with no
	// header match they go after the last header cell, never onto an occupied one.
	trailing bool
}

// Columns are listed in lookup order: fields whose hints could swallow a
// neighbour's header ("fault id" vs "fault") come first. Identifier hints stay
// narrow so a "Fault description" header is never read as an id.
var schemas = map[Table][]column{
	TableStations: {
		{field: FieldID, header: "id", position: 0, hints: []string{"id", "seq"}, trailing: true},
		{field: FieldName, header: "name", position: 1, hints: []string{"name", "station"}},
		{field: FieldLatitude, header: "lat", position: 2, hints: []string{"lat"}},
		{field: FieldLongitude, header: "lon", position: 3, hints: []string{"lon", "lng"}},
		{field: FieldBrand, header: "brand", position: 4, hints: []string{"brand", "type"}},
	},
	TableFaults: {
		{field: FieldID, header: "id", position: 6, hints: []string{"fault id", "fault_id", "uuid"}, trailing: true},
		{field: FieldReportedAt, header: "timestamp", position: 0, hints: []string{"time", "date", "reported"}},
		{field: FieldStation, header: "station", position: 1, hints: []string{"station"}},
		{field: FieldDescription, header: "description", position: 2, hints: []string{"desc", "problem", "fault"}},
		{field: FieldStatus, header: "status", position: 3, hints: []string{"status", "state"}},
		{field: FieldTechnician, header: "technician", position: 4, hints: []string{"tech"}},
		{field: FieldTicket, header: "ticket", position: 5, hints: []string{"ticket"}},
	},
	TableTechnicians: {
		{field: FieldName, header: "name", position: 0, hints: []string{"name", "tech"}},
	},
	TableAssignments: {
		{field: FieldFaultID, header: "fault_id", position: 4, hints: []string{"fault id", "fault_id", "uuid"}, trailing: true},
		{field: FieldTechnician, header: "technician", position: 0, hints: []string{"tech"}},
		{field: FieldStation, header: "station", position: 1, hints: []string{"station"}},
		{field: FieldScheduledAt, header: "scheduled_at", position: 2, hints: []string{"sched", "date", "time", "when"}},
		{field: FieldTask, header: "task", position: 3, hints: []string{"task", "desc", "label"}},
	},
}

// DefaultHeader is the header row written when a table is created.
func DefaultHeader(table Table) []string {
	cols := append([]column(nil), schemas[table]...)
	sort.Slice(cols, func(i, j int) bool { return cols[i].position < cols[j].position })
	header := make([]string, 0, len(cols))
	for _, c := range cols {
		header = append(header, c.header)
	}
	return header
}

// Columns maps logical fields onto 0-based physical column indexes.
type Columns struct {
	index     map[Field]int
	width     int
	fallbacks []Field
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// ResolveColumns finds each field of the table in the header row: an exact
// header match first, then any header containing one of the field hints, and
// finally the fixed schema position. Trailing id columns fall back to a new
// column past the header.
func ResolveColumns(table Table, header []string) Columns {
	cols := schemas[table]
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	index := make(map[Field]int, len(cols))
	claimed := make(map[int]bool, len(header))

	for _, c := range cols {
		for i, h := range normalized {
			if !claimed[i] && h == c.header {
				index[c.field] = i
				claimed[i] = true
				break
			}
		}
	}

	for _, c := range cols {
		if _, ok := index[c.field]; ok {
			continue
		}
		for i, h := range normalized {
			if claimed[i] || h == "" || !containsAny(h, c.hints) {
				continue
			}
			index[c.field] = i
			claimed[i] = true
			break
		}
	}

	result := Columns{index: index}
	next := len(header)
	place := func(c column) {
		result.fallbacks = append(result.fallbacks, c.field)
		pos := c.position
		if c.trailing || claimed[pos] {
			for claimed[next] {
				next++
			}
			pos = next
		}
		index[c.field] = pos
		claimed[pos] = true
	}
	for _, c := range cols {
		if _, ok := index[c.field]; !ok && !c.trailing {
			place(c)
		}
	}
	for _, c := range cols {
		if _, ok := index[c.field]; !ok {
			place(c)
		}
	}

	result.width = len(header)
	for _, i := range index {
		if i+1 > result.width {
			result.width = i + 1
		}
	}
	return result
}

func containsAny(value string, hints []string) bool {
	for _, hint := range hints {
		if strings.Contains(value, hint) {
			return true
		}
	}
	return false
}

// Index returns the 0-based column of a field, or -1 for a field the table does not have.
func (c Columns) Index(field Field) int {
	if i, ok := c.index[field]; ok {
		return i
	}
	return -1
}

func (c Columns) Width() int {
	return c.width
}

// Fallbacks lists fields that were placed by schema position because no header matched.
func (c Columns) Fallbacks() []Field {
	return c.fallbacks
}

func (c Columns) Get(row []string, field Field) string {
	i := c.Index(field)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Row lays a record out in physical column order.
func (c Columns) Row(rec Record) []string {
	row := make([]string, c.width)
	for field, value := range rec {
		if i := c.Index(field); i >= 0 {
			row[i] = value
		}
	}
	return row
}

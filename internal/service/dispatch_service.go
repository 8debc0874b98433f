package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
	"dispatch-service/internal/query"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/sheet"
)

type DonePolicy string

const (
	// DonePolicyDelete removes the fault row once the work is done.
	DonePolicyDelete DonePolicy = "delete"
	// DonePolicyRetain keeps the row with status Done.
	DonePolicyRetain DonePolicy = "retain"
)

func ParseDonePolicy(raw string) (DonePolicy, error) {
	switch DonePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case DonePolicyDelete, "":
		return DonePolicyDelete, nil
	case DonePolicyRetain:
		return DonePolicyRetain, nil
	default:
		return "", fmt.Errorf("unknown done policy %q", raw)
	}
}

type DispatchService struct {
	gateway    *sheet.Gateway
	history    *repository.StatusLogRepository
	donePolicy DonePolicy
	log        zerolog.Logger

	// mu serializes read-modify-write sequences; row numbers from a fresh
	// read stay valid until the sequence finishes.
	mu    sync.Mutex
	now   func() time.Time
	newID func() uuid.UUID
}

func NewDispatchService(
	gateway *sheet.Gateway,
	history *repository.StatusLogRepository,
	donePolicy DonePolicy,
	log zerolog.Logger,
) *DispatchService {
	if donePolicy == "" {
		donePolicy = DonePolicyDelete
	}
	return &DispatchService{
		gateway:    gateway,
		history:    history,
		donePolicy: donePolicy,
		log:        log,
		now:        time.Now,
		newID:      uuid.New,
	}
}

type ReportFaultInput struct {
	Station     string
	Description string
	Ticket      string
	ReportedAt  *time.Time
}

func (s *DispatchService) ReportFault(ctx context.Context, principal model.Principal, input ReportFaultInput) (*model.FaultView, error) {
	if !principal.CanReport() {
		return nil, ErrPermissionDenied
	}

	station := strings.TrimSpace(input.Station)
	description := strings.TrimSpace(input.Description)
	if station == "" {
		return nil, invalidInput("station is required")
	}
	if description == "" {
		return nil, invalidInput("description is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return nil, wrapOp("report fault", sheet.TableFaults, station, err)
	}
	if _, ok := query.FindStation(snap, station); !ok {
		return nil, invalidInput(fmt.Sprintf("unknown station %q", station))
	}
	if _, ok := query.FindActiveFaultBySubject(snap, station, description); ok {
		return nil, fmt.Errorf("%w: an active fault %q is already reported at %s", ErrConflict, description, station)
	}

	reportedAt := s.now()
	if input.ReportedAt != nil && !input.ReportedAt.IsZero() {
		reportedAt = *input.ReportedAt
	}

	fault := model.Fault{
		ID:           s.newID(),
		ReportedAt:   model.FormatTimestamp(reportedAt),
		StationName:  station,
		Description:  description,
		Status:       model.FaultStatusOpen,
		TicketNumber: strings.TrimSpace(input.Ticket),
	}
	if err := s.gateway.Append(ctx, sheet.TableFaults, sheet.FaultRecord(fault)); err != nil {
		return nil, wrapOp("report fault", sheet.TableFaults, subjectKey(station, description), err)
	}

	s.recordHistory(ctx, principal, model.FaultStatusLog{
		FaultID:     fault.ID,
		StationName: fault.StationName,
		Description: fault.Description,
		Action:      model.FaultActionReported,
		NewStatus:   model.FaultStatusOpen,
		Note:        fault.TicketNumber,
	})
	s.log.Info().Str("fault_id", fault.ID.String()).Str("station", station).Msg("fault reported")

	view := model.NewFaultView(fault, nil)
	return &view, nil
}

// AssignInput targets either a fault by id or a (station, task) pair; a task
// that matches no active fault is scheduled as free-text duty.
type AssignInput struct {
	FaultID     *uuid.UUID
	Station     string
	Task        string
	Technician  string
	ScheduledAt time.Time
}

func (s *DispatchService) CreateOrReplaceAssignment(ctx context.Context, principal model.Principal, input AssignInput) (*model.Assignment, error) {
	if !principal.IsDispatcher() {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(input.Technician) == "" {
		return nil, invalidInput("technician is required")
	}
	if input.ScheduledAt.IsZero() {
		return nil, invalidInput("scheduled time is required")
	}
	if input.FaultID == nil && (strings.TrimSpace(input.Station) == "" || strings.TrimSpace(input.Task) == "") {
		return nil, invalidInput("fault_id or station and task are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return nil, wrapOp("assign", sheet.TableAssignments, "", err)
	}

	tech, ok := query.FindTechnician(snap, input.Technician)
	if !ok {
		return nil, invalidInput(fmt.Sprintf("unknown technician %q", input.Technician))
	}

	var (
		target  *model.Fault
		matches []model.Assignment
	)
	assignment := model.Assignment{
		Technician:  tech.Name,
		ScheduledAt: model.FormatTimestamp(input.ScheduledAt),
	}

	if input.FaultID != nil {
		f, ok := query.FindFault(snap, *input.FaultID)
		if !ok {
			return nil, ErrNotFound
		}
		target = &f
	} else {
		station := strings.TrimSpace(input.Station)
		if _, ok := query.FindStation(snap, station); !ok {
			return nil, invalidInput(fmt.Sprintf("unknown station %q", station))
		}
		if f, ok := query.FindActiveFaultBySubject(snap, station, input.Task); ok {
			target = &f
		} else {
			assignment.StationName = station
			assignment.Task = strings.TrimSpace(input.Task)
			for _, a := range snap.Assignments {
				if a.MatchesText(assignment.StationName, assignment.Task) {
					matches = append(matches, a)
				}
			}
		}
	}

	if target != nil {
		if !target.Status.IsActive() {
			return nil, fmt.Errorf("%w: fault is %s", ErrInvalidStatus, target.Status)
		}
		assignment.StationName = target.StationName
		assignment.Task = target.Description
		assignment.FaultID = target.ID
		matches = query.MatchingAssignments(snap, *target)
	}

	key := subjectKey(assignment.StationName, assignment.Task)
	if err := s.upsertAssignment(ctx, &assignment, matches); err != nil {
		return nil, wrapOp("assign", sheet.TableAssignments, key, err)
	}

	if target != nil {
		s.writeTechnicianCell(ctx, *target, tech.Name)
		old := target.Status
		s.recordHistory(ctx, principal, model.FaultStatusLog{
			FaultID:     target.ID,
			StationName: target.StationName,
			Description: target.Description,
			Action:      model.FaultActionAssigned,
			OldStatus:   &old,
			NewStatus:   model.FaultStatusAssigned,
			Technician:  tech.Name,
			Note:        assignment.ScheduledAt,
		})
	}
	s.log.Info().
		Str("station", assignment.StationName).
		Str("task", assignment.Task).
		Str("technician", tech.Name).
		Str("scheduled_at", assignment.ScheduledAt).
		Int("replaced", len(matches)).
		Msg("assignment scheduled")

	return &assignment, nil
}

// upsertAssignment keeps the newest matching row and rewrites it in place.
// Older duplicates are deleted first; they all sit above the kept row, so its
// row number drops by exactly the number of rows removed.
func (s *DispatchService) upsertAssignment(ctx context.Context, a *model.Assignment, matches []model.Assignment) error {
	if len(matches) == 0 {
		current, err := s.gateway.Read(ctx, sheet.TableAssignments)
		if err != nil {
			return err
		}
		if err := s.gateway.Append(ctx, sheet.TableAssignments, sheet.AssignmentRecord(*a)); err != nil {
			return err
		}
		a.RowNumber = current.RowNumber(len(current.Rows))
		return nil
	}

	keep := matches[len(matches)-1]
	stale := query.RowNumbers(matches[:len(matches)-1])
	if err := s.gateway.DeleteRows(ctx, sheet.TableAssignments, stale); err != nil {
		return err
	}

	a.RowNumber = keep.RowNumber - len(stale)
	return s.gateway.UpdateRecord(ctx, sheet.TableAssignments, a.RowNumber, sheet.AssignmentRecord(*a))
}

// MarkDone closes the fault together with any other active row reported for
// the same station and description, then drops their assignments.
func (s *DispatchService) MarkDone(ctx context.Context, principal model.Principal, faultID uuid.UUID, note string) error {
	if !principal.CanCloseFaults() {
		return ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, target, err := s.loadFault(ctx, "mark done", faultID)
	if err != nil {
		return err
	}
	if !target.Status.CanTransition(model.FaultStatusDone) {
		return fmt.Errorf("%w: fault is %s", ErrInvalidStatus, target.Status)
	}

	closing := []model.Fault{target}
	for _, f := range snap.Faults {
		if f.RowNumber != target.RowNumber && f.Status.IsActive() && f.SameSubject(target.StationName, target.Description) {
			closing = append(closing, f)
		}
	}

	key := subjectKey(target.StationName, target.Description)
	if err := s.dropAssignments(ctx, snap, closing...); err != nil {
		return wrapOp("mark done", sheet.TableAssignments, key, err)
	}

	switch s.donePolicy {
	case DonePolicyRetain:
		for _, f := range closing {
			if err := s.gateway.UpdateField(ctx, sheet.TableFaults, f.RowNumber, sheet.FieldStatus, model.FaultStatusDone.SheetValue()); err != nil {
				return wrapOp("mark done", sheet.TableFaults, key, err)
			}
		}
	default:
		rows := make([]int, 0, len(closing))
		for _, f := range closing {
			rows = append(rows, f.RowNumber)
		}
		if err := s.gateway.DeleteRows(ctx, sheet.TableFaults, rows); err != nil {
			return wrapOp("mark done", sheet.TableFaults, key, err)
		}
	}

	entries := make([]model.FaultStatusLog, 0, len(closing))
	for _, f := range closing {
		old := f.Status
		entries = append(entries, model.FaultStatusLog{
			FaultID:     f.ID,
			StationName: f.StationName,
			Description: f.Description,
			Action:      model.FaultActionDone,
			OldStatus:   &old,
			NewStatus:   model.FaultStatusDone,
			Note:        note,
		})
	}
	s.recordHistory(ctx, principal, entries...)
	s.log.Info().
		Str("fault_id", faultID.String()).
		Str("policy", string(s.donePolicy)).
		Int("rows", len(closing)).
		Msg("fault done")
	return nil
}

// MarkNeedsRevisit sends the fault back to the dispatch queue.
func (s *DispatchService) MarkNeedsRevisit(ctx context.Context, principal model.Principal, faultID uuid.UUID, note string) error {
	if !principal.CanCloseFaults() {
		return ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, target, err := s.loadFault(ctx, "mark revisit", faultID)
	if err != nil {
		return err
	}
	if !target.Status.CanTransition(model.FaultStatusNeedsRevisit) {
		return fmt.Errorf("%w: fault is %s", ErrInvalidStatus, target.Status)
	}

	key := subjectKey(target.StationName, target.Description)
	if err := s.dropAssignments(ctx, snap, target); err != nil {
		return wrapOp("mark revisit", sheet.TableAssignments, key, err)
	}
	if err := s.gateway.UpdateField(ctx, sheet.TableFaults, target.RowNumber, sheet.FieldStatus, model.FaultStatusNeedsRevisit.SheetValue()); err != nil {
		return wrapOp("mark revisit", sheet.TableFaults, key, err)
	}

	old := target.Status
	s.recordHistory(ctx, principal, model.FaultStatusLog{
		FaultID:     target.ID,
		StationName: target.StationName,
		Description: target.Description,
		Action:      model.FaultActionRevisit,
		OldStatus:   &old,
		NewStatus:   model.FaultStatusNeedsRevisit,
		Note:        note,
	})
	s.log.Info().Str("fault_id", faultID.String()).Msg("fault needs revisit")
	return nil
}

func (s *DispatchService) DeleteFault(ctx context.Context, principal model.Principal, faultID uuid.UUID) error {
	if !principal.IsDispatcher() {
		return ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, target, err := s.loadFault(ctx, "delete fault", faultID)
	if err != nil {
		return err
	}

	key := subjectKey(target.StationName, target.Description)
	if err := s.dropAssignments(ctx, snap, target); err != nil {
		return wrapOp("delete fault", sheet.TableAssignments, key, err)
	}
	if err := s.gateway.DeleteRows(ctx, sheet.TableFaults, []int{target.RowNumber}); err != nil {
		return wrapOp("delete fault", sheet.TableFaults, key, err)
	}

	old := target.Status
	s.recordHistory(ctx, principal, model.FaultStatusLog{
		FaultID:     target.ID,
		StationName: target.StationName,
		Description: target.Description,
		Action:      model.FaultActionDeleted,
		OldStatus:   &old,
		NewStatus:   old,
	})
	s.log.Info().Str("fault_id", faultID.String()).Msg("fault deleted")
	return nil
}

// CancelAssignment removes the scheduled visit; the fault keeps its stored status.
func (s *DispatchService) CancelAssignment(ctx context.Context, principal model.Principal, faultID uuid.UUID) error {
	if !principal.IsDispatcher() {
		return ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, target, err := s.loadFault(ctx, "cancel assignment", faultID)
	if err != nil {
		return err
	}
	matches := query.MatchingAssignments(snap, target)
	if len(matches) == 0 {
		return fmt.Errorf("%w: fault has no assignment", ErrNotFound)
	}

	key := subjectKey(target.StationName, target.Description)
	if err := s.gateway.DeleteRows(ctx, sheet.TableAssignments, query.RowNumbers(matches)); err != nil {
		return wrapOp("cancel assignment", sheet.TableAssignments, key, err)
	}
	s.writeTechnicianCell(ctx, target, "")

	old := target.Status
	s.recordHistory(ctx, principal, model.FaultStatusLog{
		FaultID:     target.ID,
		StationName: target.StationName,
		Description: target.Description,
		Action:      model.FaultActionUnassigned,
		OldStatus:   &old,
		NewStatus:   target.Status,
		Technician:  matches[len(matches)-1].Technician,
	})
	s.log.Info().Str("fault_id", faultID.String()).Int("rows", len(matches)).Msg("assignment cancelled")
	return nil
}

type ListFaultsOptions struct {
	IncludeDone bool
	Station     string
}

func (s *DispatchService) ListFaults(ctx context.Context, opts ListFaultsOptions) ([]model.FaultView, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("list faults", sheet.TableFaults, "", err)
	}
	return query.FaultViews(snap, query.FaultFilter{IncludeDone: opts.IncludeDone, Station: opts.Station}), nil
}

func (s *DispatchService) GetFault(ctx context.Context, faultID uuid.UUID) (*model.FaultView, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("get fault", sheet.TableFaults, faultID.String(), err)
	}
	f, ok := query.FindFault(snap, faultID)
	if !ok {
		return nil, ErrNotFound
	}
	view := query.FaultView(snap, f)
	return &view, nil
}

// History serves the status log even after the fault row itself is gone.
func (s *DispatchService) History(ctx context.Context, faultID uuid.UUID) ([]model.FaultStatusLog, error) {
	entries, err := s.history.ListByFault(ctx, faultID)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	if _, err := s.GetFault(ctx, faultID); err != nil {
		return nil, err
	}
	return entries, nil
}

// RecentHistory lists the newest status changes across all faults.
func (s *DispatchService) RecentHistory(ctx context.Context, limit int) ([]model.FaultStatusLog, error) {
	if limit < 0 || limit > 500 {
		return nil, invalidInput("limit must be between 1 and 500")
	}
	return s.history.ListRecent(ctx, limit)
}

func (s *DispatchService) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("list assignments", sheet.TableAssignments, "", err)
	}
	return snap.Assignments, nil
}

func (s *DispatchService) LookupAssignment(ctx context.Context, station, task string) (*model.Assignment, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("lookup assignment", sheet.TableAssignments, subjectKey(station, task), err)
	}
	a, ok := query.AssignmentFor(snap, station, task)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

type BackfillResult struct {
	HeadersWritten    int `json:"headers_written"`
	FaultIDs          int `json:"fault_ids"`
	LinkedAssignments int `json:"linked_assignments"`
}

// Backfill gives legacy fault rows an id and links id-less assignments to the
// active fault with the same station and description.
func (s *DispatchService) Backfill(ctx context.Context) (BackfillResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result BackfillResult
	for _, table := range []sheet.Table{sheet.TableFaults, sheet.TableAssignments} {
		n, err := s.gateway.EnsureHeader(ctx, table)
		result.HeadersWritten += n
		if err != nil {
			return result, wrapOp("backfill header", table, "", err)
		}
	}

	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return result, wrapOp("backfill", sheet.TableFaults, "", err)
	}

	for i, f := range snap.Faults {
		if f.ID != uuid.Nil {
			continue
		}
		id := s.newID()
		if err := s.gateway.UpdateField(ctx, sheet.TableFaults, f.RowNumber, sheet.FieldID, id.String()); err != nil {
			return result, wrapOp("backfill fault id", sheet.TableFaults, subjectKey(f.StationName, f.Description), err)
		}
		snap.Faults[i].ID = id
		result.FaultIDs++
	}

	for _, a := range snap.Assignments {
		if a.FaultID != uuid.Nil {
			continue
		}
		f, ok := query.FindActiveFaultBySubject(snap, a.StationName, a.Task)
		if !ok {
			continue
		}
		if err := s.gateway.UpdateField(ctx, sheet.TableAssignments, a.RowNumber, sheet.FieldFaultID, f.ID.String()); err != nil {
			return result, wrapOp("backfill assignment link", sheet.TableAssignments, subjectKey(a.StationName, a.Task), err)
		}
		result.LinkedAssignments++
	}

	if result.HeadersWritten+result.FaultIDs+result.LinkedAssignments > 0 {
		s.log.Info().
			Int("headers", result.HeadersWritten).
			Int("fault_ids", result.FaultIDs).
			Int("linked_assignments", result.LinkedAssignments).
			Msg("sheet backfill complete")
	}
	return result, nil
}

func (s *DispatchService) loadFault(ctx context.Context, op string, faultID uuid.UUID) (model.Snapshot, model.Fault, error) {
	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return model.Snapshot{}, model.Fault{}, wrapOp(op, sheet.TableFaults, faultID.String(), err)
	}
	f, ok := query.FindFault(snap, faultID)
	if !ok {
		return model.Snapshot{}, model.Fault{}, ErrNotFound
	}
	return snap, f, nil
}

func (s *DispatchService) dropAssignments(ctx context.Context, snap model.Snapshot, faults ...model.Fault) error {
	seen := make(map[int]bool)
	var rows []int
	for _, f := range faults {
		for _, a := range query.MatchingAssignments(snap, f) {
			if !seen[a.RowNumber] {
				seen[a.RowNumber] = true
				rows = append(rows, a.RowNumber)
			}
		}
	}
	return s.gateway.DeleteRows(ctx, sheet.TableAssignments, rows)
}

// writeTechnicianCell refreshes the denormalized technician column. Views
// never read it back, so a failure is only logged.
func (s *DispatchService) writeTechnicianCell(ctx context.Context, f model.Fault, technician string) {
	if f.Technician == technician {
		return
	}
	if err := s.gateway.UpdateField(ctx, sheet.TableFaults, f.RowNumber, sheet.FieldTechnician, technician); err != nil {
		s.log.Warn().Err(err).Str("fault_id", f.ID.String()).Msg("technician cell not updated")
	}
}

func (s *DispatchService) recordHistory(ctx context.Context, principal model.Principal, entries ...model.FaultStatusLog) {
	if s.history == nil || len(entries) == 0 {
		return
	}
	now := s.now()
	for i := range entries {
		if principal.UserID != uuid.Nil {
			changedBy := principal.UserID
			entries[i].ChangedBy = &changedBy
		}
		entries[i].CreatedAt = now
	}

	var err error
	if len(entries) == 1 {
		err = s.history.Create(ctx, &entries[0])
	} else {
		err = s.history.CreateBatch(ctx, entries)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Str("fault_id", entries[0].FaultID.String()).Str("action", string(entries[0].Action)).Int("entries", len(entries)).Msg("status log write failed")
	}
}

func subjectKey(station, description string) string {
	return strings.TrimSpace(station) + "/" + strings.TrimSpace(description)
}

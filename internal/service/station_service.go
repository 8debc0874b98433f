package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
	"dispatch-service/internal/query"
	"dispatch-service/internal/sheet"
)

type StationService struct {
	gateway *sheet.Gateway
	log     zerolog.Logger
	mu      sync.Mutex
}

func NewStationService(gateway *sheet.Gateway, log zerolog.Logger) *StationService {
	return &StationService{gateway: gateway, log: log}
}

type RegisterStationInput struct {
	Name      string
	Brand     string
	Latitude  float64
	Longitude float64
}

func (s *StationService) RegisterStation(ctx context.Context, principal model.Principal, input RegisterStationInput) (*model.Station, error) {
	if !principal.IsDispatcher() {
		return nil, ErrPermissionDenied
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, invalidInput("station name is required")
	}
	if input.Latitude < -90 || input.Latitude > 90 {
		return nil, invalidInput("latitude must be within [-90, 90]")
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		return nil, invalidInput("longitude must be within [-180, 180]")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return nil, wrapOp("register station", sheet.TableStations, name, err)
	}
	if _, ok := query.FindStation(snap, name); ok {
		return nil, fmt.Errorf("%w: station %q already exists", ErrConflict, name)
	}

	station := model.Station{
		ID:        strconv.Itoa(nextStationID(snap.Stations)),
		Name:      name,
		Brand:     model.StoredBrand(input.Brand),
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}
	if err := s.gateway.Append(ctx, sheet.TableStations, sheet.StationRecord(station)); err != nil {
		return nil, wrapOp("register station", sheet.TableStations, name, err)
	}

	s.log.Info().Str("station", name).Str("id", station.ID).Str("brand", station.Brand).Msg("station registered")
	return &station, nil
}

func (s *StationService) ListStations(ctx context.Context) ([]model.Station, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("list stations", sheet.TableStations, "", err)
	}
	return snap.Stations, nil
}

func (s *StationService) Summary(ctx context.Context) (map[string]model.StationSummary, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("station summary", sheet.TableStations, "", err)
	}
	return query.StationSummary(snap), nil
}

func (s *StationService) MapMarkers(ctx context.Context) ([]model.MapMarker, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("map markers", sheet.TableStations, "", err)
	}
	return query.MapMarkers(snap), nil
}

func (s *StationService) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	snap, err := s.gateway.LoadAll(ctx)
	if err != nil {
		return nil, wrapOp("list technicians", sheet.TableTechnicians, "", err)
	}
	return snap.Technicians, nil
}

func (s *StationService) RegisterTechnician(ctx context.Context, principal model.Principal, name string) (*model.Technician, error) {
	if !principal.IsDispatcher() {
		return nil, ErrPermissionDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("technician name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return nil, wrapOp("register technician", sheet.TableTechnicians, name, err)
	}
	if _, ok := query.FindTechnician(snap, name); ok {
		return nil, fmt.Errorf("%w: technician %q already exists", ErrConflict, name)
	}

	tech := model.Technician{Name: name}
	if err := s.gateway.Append(ctx, sheet.TableTechnicians, sheet.TechnicianRecord(tech)); err != nil {
		return nil, wrapOp("register technician", sheet.TableTechnicians, name, err)
	}
	s.log.Info().Str("technician", name).Msg("technician registered")
	return &tech, nil
}

// Backfill numbers station rows that were added without a sequence id.
func (s *StationService) Backfill(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.gateway.EnsureHeader(ctx, sheet.TableStations); err != nil {
		return 0, wrapOp("backfill header", sheet.TableStations, "", err)
	}
	snap, err := s.gateway.LoadAllFresh(ctx)
	if err != nil {
		return 0, wrapOp("backfill", sheet.TableStations, "", err)
	}

	next := nextStationID(snap.Stations)
	written := 0
	for _, st := range snap.Stations {
		if strings.TrimSpace(st.ID) != "" {
			continue
		}
		id := strconv.Itoa(next)
		if err := s.gateway.UpdateField(ctx, sheet.TableStations, st.RowNumber, sheet.FieldID, id); err != nil {
			return written, wrapOp("backfill station id", sheet.TableStations, st.Name, err)
		}
		next++
		written++
	}
	if written > 0 {
		s.log.Info().Int("stations", written).Msg("station ids backfilled")
	}
	return written, nil
}

// nextStationID is one past the largest numeric id; non-numeric ids are ignored.
func nextStationID(stations []model.Station) int {
	highest := 0
	for _, st := range stations {
		if n, err := strconv.Atoi(strings.TrimSpace(st.ID)); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dispatch-service/internal/cache"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/model"
)

const cacheKeyPrefix = "dispatch:sheet:"

type Options struct {
	CacheTTL         time.Duration
	RateLimitRetries int
	RateLimitBackoff time.Duration
}

// Gateway is the single entry point to the spreadsheet. It serializes access
// per table, memoizes reads and invalidates a table on every write to it.
type Gateway struct {
	backend Backend
	cache   cache.Cache
	opts    Options
	metrics *metrics.Metrics
	log     zerolog.Logger
	locks   map[Table]*sync.Mutex
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewGateway(backend Backend, c cache.Cache, opts Options, m *metrics.Metrics, log zerolog.Logger) *Gateway {
	locks := make(map[Table]*sync.Mutex, len(Tables))
	for _, table := range Tables {
		locks[table] = &sync.Mutex{}
	}
	return &Gateway{
		backend: backend,
		cache:   c,
		opts:    opts,
		metrics: m,
		log:     log,
		locks:   locks,
		sleep:   sleepContext,
	}
}

// Sheet is one read of a table. Rows excludes the header, so Rows[i] is
// physical row i+2.
type Sheet struct {
	Table   Table
	Header  []string
	Columns Columns
	Rows    [][]string
}

func (s *Sheet) RowNumber(i int) int {
	return i + 2
}

func (g *Gateway) Read(ctx context.Context, table Table) (*Sheet, error) {
	unlock, err := g.lock(table)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return g.read(ctx, table, true)
}

// LoadAll reads the four tables concurrently, serving from cache where possible.
func (g *Gateway) LoadAll(ctx context.Context) (model.Snapshot, error) {
	return g.loadAll(ctx, true)
}

// LoadAllFresh bypasses the cache; workflow mutations act on this read.
func (g *Gateway) LoadAllFresh(ctx context.Context) (model.Snapshot, error) {
	return g.loadAll(ctx, false)
}

func (g *Gateway) loadAll(ctx context.Context, useCache bool) (model.Snapshot, error) {
	sheets := make([]*Sheet, len(Tables))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, table := range Tables {
		eg.Go(func() error {
			unlock, err := g.lock(table)
			if err != nil {
				return err
			}
			defer unlock()

			sheet, err := g.read(egCtx, table, useCache)
			if err != nil {
				return fmt.Errorf("read %s: %w", table, err)
			}
			sheets[i] = sheet
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		Stations:    DecodeStations(sheets[0]),
		Faults:      DecodeFaults(sheets[1]),
		Technicians: DecodeTechnicians(sheets[2]),
		Assignments: DecodeAssignments(sheets[3]),
	}, nil
}

func (g *Gateway) Append(ctx context.Context, table Table, rec Record) error {
	unlock, err := g.lock(table)
	if err != nil {
		return err
	}
	defer unlock()

	sheet, err := g.read(ctx, table, true)
	if err != nil {
		return err
	}
	values := sheet.Columns.Row(rec)

	defer g.invalidate(ctx, table)
	return g.call(ctx, table, "append_row", func(ctx context.Context) error {
		return g.backend.AppendRow(ctx, table, values)
	})
}

// UpdateCell writes one cell; row and col are 1-based and row 1 is the header.
func (g *Gateway) UpdateCell(ctx context.Context, table Table, row, col int, value string) error {
	unlock, err := g.lock(table)
	if err != nil {
		return err
	}
	defer unlock()

	return g.updateCell(ctx, table, row, col, value)
}

// UpdateField resolves field against the current header and writes one cell.
func (g *Gateway) UpdateField(ctx context.Context, table Table, row int, field Field, value string) error {
	unlock, err := g.lock(table)
	if err != nil {
		return err
	}
	defer unlock()

	sheet, err := g.read(ctx, table, true)
	if err != nil {
		return err
	}
	col := sheet.Columns.Index(field)
	if col < 0 {
		return fmt.Errorf("%w: %s has no %s column", ErrSchemaMismatch, table, field)
	}
	return g.updateCell(ctx, table, row, col+1, value)
}

// UpdateRecord rewrites the fields present in rec on one data row, leaving other cells alone.
func (g *Gateway) UpdateRecord(ctx context.Context, table Table, row int, rec Record) error {
	if row < 2 {
		return fmt.Errorf("%w: %d", ErrInvalidRow, row)
	}
	unlock, err := g.lock(table)
	if err != nil {
		return err
	}
	defer unlock()

	sheet, err := g.read(ctx, table, true)
	if err != nil {
		return err
	}
	for _, c := range schemas[table] {
		value, ok := rec[c.field]
		if !ok {
			continue
		}
		col := sheet.Columns.Index(c.field)
		if col < 0 {
			return fmt.Errorf("%w: %s has no %s column", ErrSchemaMismatch, table, c.field)
		}
		if err := g.updateCell(ctx, table, row, col+1, value); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) updateCell(ctx context.Context, table Table, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row %d col %d", ErrInvalidRow, row, col)
	}
	defer g.invalidate(ctx, table)
	return g.call(ctx, table, "update_cell", func(ctx context.Context) error {
		return g.backend.UpdateCell(ctx, table, row, col, value)
	})
}

// DeleteRows removes the given physical rows highest-first, so that each
// deletion leaves the row numbers of the remaining targets untouched.
func (g *Gateway) DeleteRows(ctx context.Context, table Table, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	ordered := DescendingRows(rows)
	for _, row := range ordered {
		if row < 2 {
			return fmt.Errorf("%w: %d", ErrInvalidRow, row)
		}
	}

	unlock, err := g.lock(table)
	if err != nil {
		return err
	}
	defer unlock()
	defer g.invalidate(ctx, table)

	for i, row := range ordered {
		err := g.call(ctx, table, "delete_row", func(ctx context.Context) error {
			return g.backend.DeleteRow(ctx, table, row)
		})
		if err != nil {
			return fmt.Errorf("delete %s row %d (%d of %d): %w", table, row, i+1, len(ordered), err)
		}
	}
	return nil
}

// EnsureHeader writes default header names for schema columns that sit past
// the end of the existing header row, e.g. id columns added to legacy sheets.
func (g *Gateway) EnsureHeader(ctx context.Context, table Table) (int, error) {
	unlock, err := g.lock(table)
	if err != nil {
		return 0, err
	}
	defer unlock()

	sheet, err := g.read(ctx, table, false)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, c := range schemas[table] {
		col := sheet.Columns.Index(c.field)
		if col < len(sheet.Header) {
			continue
		}
		if err := g.updateCell(ctx, table, 1, col+1, c.header); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Invalidate drops cached reads for the given tables, or all tables when none are given.
func (g *Gateway) Invalidate(ctx context.Context, tables ...Table) {
	if len(tables) == 0 {
		tables = Tables
	}
	for _, table := range tables {
		g.invalidate(ctx, table)
	}
}

func (g *Gateway) read(ctx context.Context, table Table, useCache bool) (*Sheet, error) {
	key := cacheKeyPrefix + string(table)

	if useCache && g.cache != nil && g.opts.CacheTTL > 0 {
		raw, found, err := g.cache.Get(ctx, key)
		if err != nil {
			g.log.Warn().Err(err).Str("table", string(table)).Msg("sheet cache read failed")
		}
		if err == nil && found {
			var rows [][]string
			if err := json.Unmarshal([]byte(raw), &rows); err == nil {
				g.metrics.CacheLookup(string(table), true)
				return newSheet(table, rows), nil
			}
		}
		g.metrics.CacheLookup(string(table), false)
	}

	var rows [][]string
	err := g.call(ctx, table, "rows", func(ctx context.Context) error {
		var err error
		rows, err = g.backend.Rows(ctx, table)
		return err
	})
	if err != nil {
		return nil, err
	}

	sheet := newSheet(table, rows)
	if fallbacks := sheet.Columns.Fallbacks(); len(fallbacks) > 0 {
		g.log.Warn().
			Err(ErrSchemaMismatch).
			Str("table", string(table)).
			Strs("header", sheet.Header).
			Interface("positional", fallbacks).
			Msg("header lookup fell back to schema positions")
	}

	if g.cache != nil && g.opts.CacheTTL > 0 {
		if encoded, err := json.Marshal(rows); err == nil {
			if err := g.cache.Set(ctx, key, string(encoded), g.opts.CacheTTL); err != nil {
				g.log.Warn().Err(err).Str("table", string(table)).Msg("sheet cache write failed")
			}
		}
	}
	return sheet, nil
}

func (g *Gateway) invalidate(ctx context.Context, table Table) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Delete(context.WithoutCancel(ctx), cacheKeyPrefix+string(table)); err != nil {
		g.log.Error().Err(err).Str("table", string(table)).Msg("sheet cache invalidation failed")
	}
}

// call runs one backend operation, retrying only rate-limit failures with a
// linear backoff.
func (g *Gateway) call(ctx context.Context, table Table, op string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		start := time.Now()
		err := fn(ctx)
		g.metrics.ObserveCall(string(table), op, callStatus(err), time.Since(start))

		if err == nil || !errors.Is(err, ErrRateLimited) || attempt >= g.opts.RateLimitRetries {
			if err != nil && !errors.Is(err, ErrRowNotFound) {
				g.log.Error().Err(err).Str("table", string(table)).Str("op", op).Msg("sheet call failed")
			}
			return err
		}

		wait := g.opts.RateLimitBackoff * time.Duration(attempt+1)
		g.log.Warn().
			Str("table", string(table)).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("sheet rate limited, retrying")
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (g *Gateway) lock(table Table) (func(), error) {
	mu, ok := g.locks[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	mu.Lock()
	return mu.Unlock, nil
}

func newSheet(table Table, rows [][]string) *Sheet {
	var header []string
	if len(rows) > 0 {
		header = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = strings.TrimSpace(h)
		}
		rows = rows[1:]
	}
	return &Sheet{
		Table:   table,
		Header:  header,
		Columns: ResolveColumns(table, header),
		Rows:    rows,
	}
}

// DescendingRows returns the distinct row numbers sorted highest-first.
func DescendingRows(rows []int) []int {
	seen := make(map[int]bool, len(rows))
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRowNotFound):
		return "not_found"
	case errors.Is(err, ErrConnectivity):
		return "unreachable"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

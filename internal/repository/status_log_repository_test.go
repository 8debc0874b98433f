package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dispatch-service/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.FaultStatusLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestStatusLogCreateAndListByFault(t *testing.T) {
	repo := NewStatusLogRepository(openTestDB(t))
	ctx := context.Background()

	faultID := uuid.New()
	otherID := uuid.New()
	open := model.FaultStatusOpen
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	entries := []model.FaultStatusLog{
		{FaultID: faultID, StationName: "X", Description: "Pump leak", Action: model.FaultActionReported, NewStatus: model.FaultStatusOpen, CreatedAt: base},
		{FaultID: otherID, StationName: "Y", Description: "Canopy", Action: model.FaultActionReported, NewStatus: model.FaultStatusOpen, CreatedAt: base.Add(time.Minute)},
		{FaultID: faultID, StationName: "X", Description: "Pump leak", Action: model.FaultActionDone, OldStatus: &open, NewStatus: model.FaultStatusDone, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("create entry %d: %v", i, err)
		}
		if entries[i].ID == uuid.Nil {
			t.Fatalf("entry %d did not get an id", i)
		}
	}

	history, err := repo.ListByFault(ctx, faultID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].Action != model.FaultActionReported || history[1].Action != model.FaultActionDone {
		t.Fatalf("unexpected order: %s, %s", history[0].Action, history[1].Action)
	}
	if history[1].OldStatus == nil || *history[1].OldStatus != model.FaultStatusOpen {
		t.Fatalf("old status not persisted: %+v", history[1].OldStatus)
	}
}

func TestStatusLogListFilters(t *testing.T) {
	repo := NewStatusLogRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	batch := []model.FaultStatusLog{
		{FaultID: uuid.New(), StationName: "X", Description: "a", Action: model.FaultActionReported, NewStatus: model.FaultStatusOpen, CreatedAt: base},
		{FaultID: uuid.New(), StationName: "X", Description: "b", Action: model.FaultActionRevisit, NewStatus: model.FaultStatusNeedsRevisit, CreatedAt: base.Add(time.Hour)},
		{FaultID: uuid.New(), StationName: "Y", Description: "c", Action: model.FaultActionRevisit, NewStatus: model.FaultStatusNeedsRevisit, CreatedAt: base.Add(2 * time.Hour)},
	}
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	got, err := repo.List(ctx, StatusLogFilter{Station: "X", Actions: []model.FaultAction{model.FaultActionRevisit}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Description != "b" {
		t.Fatalf("unexpected filter result: %+v", got)
	}

	recent, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Description != "c" {
		t.Fatalf("unexpected recent entries: %+v", recent)
	}
}

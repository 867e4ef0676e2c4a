package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/fossawork/fossawork/internal/calculator"
)

func sampleOrders() []calculator.WorkOrder {
	return []calculator.WorkOrder{
		{JobID: "J1", StoreNumber: "S1", CustomerName: "7-Eleven Store #1", ServiceCode: "2861"},
		{JobID: "J2", StoreNumber: "S2", CustomerName: "Wawa #450", ServiceCode: "3002"},
	}
}

func sampleDispensers() []calculator.Dispenser {
	return []calculator.Dispenser{
		{
			StoreNumber:     "S1",
			DispenserNumber: "1",
			FuelGrades:      []calculator.FuelGrade{{Grade: "Regular"}, {Grade: "Diesel"}},
			MeterType:       "Electronic",
		},
		{
			StoreNumber:     "S1",
			DispenserNumber: "2",
			FuelGrades:      []calculator.FuelGrade{{Grade: "Regular"}},
			MeterType:       "HD Meter",
		},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.SaveWorkOrders(ctx, sampleOrders()); err != nil {
		t.Fatalf("SaveWorkOrders: %v", err)
	}
	orders, err := store.WorkOrders(ctx)
	if err != nil {
		t.Fatalf("WorkOrders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 work orders, got %d", len(orders))
	}

	// ensure mutation safety
	orders[0].JobID = "mutated"
	again, err := store.WorkOrders(ctx)
	if err != nil {
		t.Fatalf("WorkOrders: %v", err)
	}
	if again[0].JobID == "mutated" {
		t.Fatalf("expected defensive copy of work orders")
	}

	if err := store.SaveDispensers(ctx, "S1", sampleDispensers()); err != nil {
		t.Fatalf("SaveDispensers: %v", err)
	}
	dispensers, err := store.Dispensers(ctx)
	if err != nil {
		t.Fatalf("Dispensers: %v", err)
	}
	if len(dispensers) != 2 {
		t.Fatalf("expected 2 dispensers, got %d", len(dispensers))
	}
}

func TestMemoryStoreSaveDispensersReplacesStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.SaveDispensers(ctx, "S1", sampleDispensers()); err != nil {
		t.Fatalf("SaveDispensers: %v", err)
	}
	replacement := []calculator.Dispenser{{
		StoreNumber:     "S1",
		DispenserNumber: "9",
		FuelGrades:      []calculator.FuelGrade{{Grade: "Diesel"}},
	}}
	if err := store.SaveDispensers(ctx, "S1", replacement); err != nil {
		t.Fatalf("SaveDispensers: %v", err)
	}

	dispensers, err := store.Dispensers(ctx)
	if err != nil {
		t.Fatalf("Dispensers: %v", err)
	}
	if len(dispensers) != 1 || dispensers[0].DispenserNumber != "9" {
		t.Fatalf("expected replacement dispenser only, got %v", dispensers)
	}
}

func TestMemoryStoreOverrides(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.SetOverride(ctx, "J1", "400MB-10", 5); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	if err := store.SetOverride(ctx, "J1", "400MB-10", 7); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}

	overrides, err := store.Overrides(ctx)
	if err != nil {
		t.Fatalf("Overrides: %v", err)
	}
	if got := overrides["J1-400MB-10"]; got != 7 {
		t.Fatalf("expected latest override 7, got %d", got)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			if err := store.SaveWorkOrders(ctx, sampleOrders()); err != nil {
				t.Errorf("SaveWorkOrders failed: %v", err)
			}
		}()

		go func() {
			defer wg.Done()
			if _, err := store.WorkOrders(ctx); err != nil {
				t.Errorf("WorkOrders failed: %v", err)
			}
		}()
	}

	wg.Wait()

	if _, err := store.WorkOrders(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

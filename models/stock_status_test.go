package models

import (
	"errors"
	"testing"
)

func TestDeriveStockStatusBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		available int
		total     int
		threshold int
		want      StockStatus
	}{
		{"zero available", 0, 100, 30, StockStatusOutOfStock},
		{"exactly at threshold", 30, 100, 30, StockStatusLowStock},
		{"just above threshold", 31, 100, 30, StockStatusAvailable},
		{"just below threshold", 29, 100, 30, StockStatusLowStock},
		{"fully stocked", 100, 100, 30, StockStatusAvailable},
		{"custom threshold at boundary", 10, 100, 10, StockStatusLowStock},
		{"custom threshold above boundary", 11, 100, 10, StockStatusAvailable},
		// 3/10 = 30% exactly: boundary is inclusive.
		{"small pool at boundary", 3, 10, 30, StockStatusLowStock},
		{"small pool above boundary", 4, 10, 30, StockStatusAvailable},
		// Unset threshold falls back to the 30% default.
		{"zero threshold uses default", 30, 100, 0, StockStatusLowStock},
		{"negative available clamps to out of stock", -1, 100, 30, StockStatusOutOfStock},
		{"zero total with stock", 1, 0, 30, StockStatusAvailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStockStatus(tc.available, tc.total, tc.threshold)
			if got != tc.want {
				t.Fatalf("DeriveStockStatus(%d, %d, %d) = %q, want %q",
					tc.available, tc.total, tc.threshold, got, tc.want)
			}
		})
	}
}

func TestApplyReserve(t *testing.T) {
	unit := StockUnit{ID: 1, TotalQty: 10, AvailableQty: 10, LowStockThreshold: 30}

	if err := unit.applyReserve(4); err != nil {
		t.Fatalf("reserve 4 of 10: %v", err)
	}
	if unit.AvailableQty != 6 {
		t.Fatalf("available = %d, want 6", unit.AvailableQty)
	}
	if unit.ReservedQty() != 4 {
		t.Fatalf("reserved = %d, want 4", unit.ReservedQty())
	}

	err := unit.applyReserve(7)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("reserve 7 of 6: got %v, want InsufficientStockError", err)
	}
	if insufficient.Requested != 7 || insufficient.Available != 6 {
		t.Fatalf("error detail = requested %d available %d, want 7/6",
			insufficient.Requested, insufficient.Available)
	}
	// Failed reserve must not mutate the ledger.
	if unit.AvailableQty != 6 {
		t.Fatalf("available changed on failed reserve: %d", unit.AvailableQty)
	}
}

func TestApplyReleaseConservation(t *testing.T) {
	unit := StockUnit{ID: 1, TotalQty: 10, AvailableQty: 6}

	if err := unit.applyRelease(4); err != nil {
		t.Fatalf("release 4: %v", err)
	}
	if unit.AvailableQty != 10 {
		t.Fatalf("available = %d, want 10", unit.AvailableQty)
	}

	// Releasing beyond total is a consistency violation, never a clamp.
	err := unit.applyRelease(1)
	var cv *ConsistencyViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("over-release: got %v, want ConsistencyViolationError", err)
	}
	if unit.AvailableQty != 10 {
		t.Fatalf("available changed on failed release: %d", unit.AvailableQty)
	}
}

func TestApplyCapacity(t *testing.T) {
	unit := StockUnit{ID: 1, TotalQty: 10, AvailableQty: 6} // 4 reserved

	if err := unit.applyCapacity(15); err != nil {
		t.Fatalf("grow to 15: %v", err)
	}
	if unit.TotalQty != 15 || unit.AvailableQty != 11 {
		t.Fatalf("after grow: total=%d available=%d, want 15/11", unit.TotalQty, unit.AvailableQty)
	}
	if unit.ReservedQty() != 4 {
		t.Fatalf("reserved changed on capacity adjust: %d", unit.ReservedQty())
	}

	if err := unit.applyCapacity(5); err != nil {
		t.Fatalf("shrink to 5 (4 reserved): %v", err)
	}
	if unit.TotalQty != 5 || unit.AvailableQty != 1 {
		t.Fatalf("after shrink: total=%d available=%d, want 5/1", unit.TotalQty, unit.AvailableQty)
	}

	// Shrinking below the reserved quantity would strand loans.
	err := unit.applyCapacity(3)
	var capErr *CapacityViolationError
	if !errors.As(err, &capErr) {
		t.Fatalf("shrink below reserved: got %v, want CapacityViolationError", err)
	}
	if capErr.Reserved != 4 {
		t.Fatalf("error reserved = %d, want 4", capErr.Reserved)
	}

	if err := unit.applyCapacity(-1); err == nil {
		t.Fatal("negative total accepted")
	}
}

func TestApplyWriteOff(t *testing.T) {
	unit := StockUnit{ID: 1, TotalQty: 10, AvailableQty: 6} // 4 reserved

	if err := unit.applyWriteOff(4); err != nil {
		t.Fatalf("write off 4 reserved: %v", err)
	}
	// Lost stock leaves the pool permanently: total shrinks, available stays.
	if unit.TotalQty != 6 || unit.AvailableQty != 6 {
		t.Fatalf("after write-off: total=%d available=%d, want 6/6", unit.TotalQty, unit.AvailableQty)
	}

	err := unit.applyWriteOff(1)
	var cv *ConsistencyViolationError
	if !errors.As(err, &cv) {
		t.Fatalf("write off with nothing reserved: got %v, want ConsistencyViolationError", err)
	}
}

func TestBeforeSaveRecomputesStatus(t *testing.T) {
	unit := StockUnit{ID: 1, TotalQty: 10, AvailableQty: 2, LowStockThreshold: 30,
		Status: StockStatusAvailable}
	if err := unit.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if unit.Status != StockStatusLowStock {
		t.Fatalf("status = %q, want %q", unit.Status, StockStatusLowStock)
	}

	unit.AvailableQty = 0
	if err := unit.BeforeSave(nil); err != nil {
		t.Fatalf("BeforeSave: %v", err)
	}
	if unit.Status != StockStatusOutOfStock {
		t.Fatalf("status = %q, want %q", unit.Status, StockStatusOutOfStock)
	}
}

func TestBeforeSaveRejectsImpossibleQuantities(t *testing.T) {
	var cv *ConsistencyViolationError

	over := StockUnit{ID: 1, TotalQty: 10, AvailableQty: 11}
	if err := over.BeforeSave(nil); !errors.As(err, &cv) {
		t.Fatalf("available > total: got %v, want ConsistencyViolationError", err)
	}

	negative := StockUnit{ID: 1, TotalQty: 10, AvailableQty: -1}
	if err := negative.BeforeSave(nil); !errors.As(err, &cv) {
		t.Fatalf("available < 0: got %v, want ConsistencyViolationError", err)
	}
}

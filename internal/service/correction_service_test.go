package service

import (
	"context"
	"errors"
	"testing"

	"github.com/attendlog/internal/ledger"
)

func TestCorrectionServiceLifecycle(t *testing.T) {
	ts := newTestServices(t, nil)
	ctx := context.Background()
	d := ledger.MustParseDate("2024-03-05")

	if _, err := ts.corrections.Upsert(ctx, d, -1, ""); !errors.Is(err, ledger.ErrNegativeMinutes) {
		t.Fatalf("expected ErrNegativeMinutes, got %v", err)
	}

	c, err := ts.corrections.Upsert(ctx, d, 480, " manual adjustment ")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if c.CorrectedMinutes != 480 || c.Reason != "manual adjustment" {
		t.Fatalf("unexpected correction %+v", c)
	}

	c, err = ts.corrections.Upsert(ctx, d, 300, "second thought")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if c.CorrectedMinutes != 300 {
		t.Fatalf("expected replaced minutes, got %d", c.CorrectedMinutes)
	}

	list, err := ts.corrections.ListBetween(ctx, nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected a single correction per date, got %d (%v)", len(list), err)
	}

	if err := ts.corrections.Delete(ctx, d); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ts.corrections.Get(ctx, d); !errors.Is(err, ErrCorrectionNotFound) {
		t.Fatalf("expected ErrCorrectionNotFound, got %v", err)
	}
	if err := ts.corrections.Delete(ctx, d); !errors.Is(err, ErrCorrectionNotFound) {
		t.Fatalf("expected ErrCorrectionNotFound on second delete, got %v", err)
	}
}

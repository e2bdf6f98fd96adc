package enrollment

import (
	"strings"
	"testing"
	"time"
)

func TestNextMonthRollsOverYear(t *testing.T) {
	got := NextMonth(time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC))
	want := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNormalizeBatchTime(t *testing.T) {
	cases := map[string]string{
		"06:00":    "06:00:00",
		"6:00":     "06:00:00",
		" 17:00 ":  "17:00:00",
		"18:00:00": "18:00:00",
	}
	for input, want := range cases {
		got, ok := NormalizeBatchTime(input)
		if !ok || got != want {
			t.Fatalf("NormalizeBatchTime(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}

	for _, input := range []string{"", "25:00", "six", "06:00 am"} {
		if _, ok := NormalizeBatchTime(input); ok {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestDefaultBatches(t *testing.T) {
	batches := DefaultBatches()
	if len(batches) != 5 {
		t.Fatalf("expected 5 batches, got %d", len(batches))
	}
	for _, batch := range batches {
		if batch.MaxCapacity != 30 || batch.MonthlyFee.String() != "1000" || batch.CurrentCapacity != 0 {
			t.Fatalf("unexpected default batch %+v", batch)
		}
	}
}

func TestInsufficientPaymentErrorMessage(t *testing.T) {
	err := &InsufficientPaymentError{Required: DefaultBatches()[0].MonthlyFee}
	if !strings.Contains(err.Error(), "1000.00") {
		t.Fatalf("expected required amount in message, got %q", err.Error())
	}
}

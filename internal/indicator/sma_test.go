package indicator

import (
	"math"
	"testing"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	sma := SMA(prices, 3)

	// SMA(3) for [10,11,12,13,14,15]:
	// [0] = (10+11+12)/3 = 11
	// [1] = (11+12+13)/3 = 12
	// [2] = (12+13+14)/3 = 13
	// [3] = (13+14+15)/3 = 14

	expected := []float64{11, 12, 13, 14}

	if len(sma) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(sma))
	}

	for i, v := range expected {
		if sma[i] != v {
			t.Errorf("sma[%d] = %f, want %f", i, sma[i], v)
		}
	}
}

func TestSMA_NotEnoughData(t *testing.T) {
	prices := []float64{10, 11}
	sma := SMA(prices, 5)

	if len(sma) != 0 {
		t.Errorf("expected empty slice, got %d values", len(sma))
	}
}

func TestSMA_InvalidPeriod(t *testing.T) {
	if got := SMA([]float64{1, 2, 3}, 0); len(got) != 0 {
		t.Errorf("expected empty slice for zero period, got %v", got)
	}
}

func TestAlignedSMA(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	aligned := AlignedSMA(prices, 3)
	if len(aligned) != len(prices) {
		t.Fatalf("expected %d values, got %d", len(prices), len(aligned))
	}

	for i := 0; i < 2; i++ {
		if !math.IsNaN(aligned[i]) {
			t.Errorf("aligned[%d] = %f, want NaN during warm-up", i, aligned[i])
		}
	}

	expected := []float64{11, 12, 13, 14}
	for i, v := range expected {
		if aligned[i+2] != v {
			t.Errorf("aligned[%d] = %f, want %f", i+2, aligned[i+2], v)
		}
	}
}

func TestAlignedSMA_NotEnoughData(t *testing.T) {
	aligned := AlignedSMA([]float64{10, 11}, 5)
	if len(aligned) != 2 {
		t.Fatalf("expected 2 values, got %d", len(aligned))
	}
	for i, v := range aligned {
		if !math.IsNaN(v) {
			t.Errorf("aligned[%d] = %f, want NaN", i, v)
		}
	}
}

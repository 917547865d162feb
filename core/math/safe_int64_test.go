package math

import (
	"math"
	"testing"
)

func TestSafeAddI64(t *testing.T) {
	tests := []struct {
		a, b     int64
		expected int64
		wantErr  bool
	}{
		{1, 2, 3, false},
		{-5, 3, -2, false},
		{math.MaxInt64, 0, math.MaxInt64, false},
		{math.MaxInt64, 1, 0, true},
		{math.MinInt64, -1, 0, true},
		{math.MinInt64, 1, math.MinInt64 + 1, false},
	}

	for _, tt := range tests {
		result, err := SafeAddI64(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SafeAddI64(%d, %d) expected error, got nil", tt.a, tt.b)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeAddI64(%d, %d) unexpected error: %v", tt.a, tt.b, err)
		}
		if result != tt.expected {
			t.Errorf("SafeAddI64(%d, %d) = %d, want %d", tt.a, tt.b, result, tt.expected)
		}
	}
}

func TestSafeSubI64(t *testing.T) {
	tests := []struct {
		a, b     int64
		expected int64
		wantErr  bool
	}{
		{10, 3, 7, false},
		{-10, -3, -7, false},
		{math.MinInt64, 1, 0, true},
		{math.MaxInt64, -1, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeSubI64(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SafeSubI64(%d, %d) expected error, got nil", tt.a, tt.b)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeSubI64(%d, %d) unexpected error: %v", tt.a, tt.b, err)
		}
		if result != tt.expected {
			t.Errorf("SafeSubI64(%d, %d) = %d, want %d", tt.a, tt.b, result, tt.expected)
		}
	}
}

func TestSafeMulI64(t *testing.T) {
	tests := []struct {
		a, b     int64
		expected int64
		wantErr  bool
	}{
		{3, 4, 12, false},
		{0, math.MaxInt64, 0, false},
		{math.MaxInt64, 2, 0, true},
	}

	for _, tt := range tests {
		result, err := SafeMulI64(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SafeMulI64(%d, %d) expected error, got nil", tt.a, tt.b)
			}
			continue
		}
		if err != nil {
			t.Errorf("SafeMulI64(%d, %d) unexpected error: %v", tt.a, tt.b, err)
		}
		if result != tt.expected {
			t.Errorf("SafeMulI64(%d, %d) = %d, want %d", tt.a, tt.b, result, tt.expected)
		}
	}
}

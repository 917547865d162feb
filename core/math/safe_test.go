package math

import (
	"math"
	"testing"
)

func TestSafeAdd(t *testing.T) {
	tests := []struct {
		a, b     uint64
		expected uint64
		wantErr  bool
	}{
		{1, 2, 3, false},
		{0, 0, 0, false},
		{math.MaxUint64, 0, math.MaxUint64, false},
		{math.MaxUint64, 1, 0, true}, // overflow
		{math.MaxUint64 - 1, 2, 0, true},
		{1000000, 2000000, 3000000, false},
	}

	for _, tt := range tests {
		result, err := SafeAdd(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SafeAdd(%d, %d) expected error, got nil", tt.a, tt.b)
			}
		} else {
			if err != nil {
				t.Errorf("SafeAdd(%d, %d) unexpected error: %v", tt.a, tt.b, err)
			}
			if result != tt.expected {
				t.Errorf("SafeAdd(%d, %d) = %d, want %d", tt.a, tt.b, result, tt.expected)
			}
		}
	}
}

func TestSafeSub(t *testing.T) {
	tests := []struct {
		a, b     uint64
		expected uint64
		wantErr  bool
	}{
		{5, 3, 2, false},
		{0, 0, 0, false},
		{100, 100, 0, false},
		{3, 5, 0, true}, // underflow
		{0, 1, 0, true},
		{math.MaxUint64, math.MaxUint64, 0, false},
	}

	for _, tt := range tests {
		result, err := SafeSub(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SafeSub(%d, %d) expected error, got nil", tt.a, tt.b)
			}
		} else {
			if err != nil {
				t.Errorf("SafeSub(%d, %d) unexpected error: %v", tt.a, tt.b, err)
			}
			if result != tt.expected {
				t.Errorf("SafeSub(%d, %d) = %d, want %d", tt.a, tt.b, result, tt.expected)
			}
		}
	}
}


package state

import "testing"

func TestStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		expected string
	}{
		{"active status", StatusActive, "ACTIVE"},
		{"inactive status", StatusInactive, "INACTIVE"},
		{"failed status", StatusFailed, "FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.String(); got != tt.expected {
				t.Errorf("String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{"active to inactive", StatusActive, StatusInactive, true},
		{"inactive to active", StatusInactive, StatusActive, true},
		{"active to failed is not an operator transition", StatusActive, StatusFailed, false},
		{"failed to active is not an operator transition (use reactivate)", StatusFailed, StatusActive, false},
		{"failed to inactive", StatusFailed, StatusInactive, false},
		{"inactive to failed", StatusInactive, StatusFailed, false},
		{"same status is always valid", StatusActive, StatusActive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestStatus_Valid(t *testing.T) {
	if !StatusActive.Valid() {
		t.Error("expected ACTIVE to be valid")
	}
	if Status("BOGUS").Valid() {
		t.Error("expected BOGUS to be invalid")
	}
}

package types_test

import (
	"encoding/json"
	"testing"

	"github.com/fited/stocktrack/internal/types"
)

// TestFlexIntUnmarshal tests accepting both JSON numbers and numeric
// strings
func TestFlexIntUnmarshal(t *testing.T) {
	var payload struct {
		Amount types.FlexInt `json:"amount"`
	}

	if err := json.Unmarshal([]byte(`{"amount": 42}`), &payload); err != nil {
		t.Fatalf("Failed to unmarshal number: %v", err)
	}
	if payload.Amount.Int() != 42 {
		t.Errorf("Expected 42, got %d", payload.Amount.Int())
	}

	if err := json.Unmarshal([]byte(`{"amount": "-7"}`), &payload); err != nil {
		t.Fatalf("Failed to unmarshal string: %v", err)
	}
	if payload.Amount.Int() != -7 {
		t.Errorf("Expected -7, got %d", payload.Amount.Int())
	}

	if err := json.Unmarshal([]byte(`{"amount": "lots"}`), &payload); err == nil {
		t.Error("Expected non-numeric string to be rejected")
	}
	if err := json.Unmarshal([]byte(`{"amount": true}`), &payload); err == nil {
		t.Error("Expected boolean to be rejected")
	}
}

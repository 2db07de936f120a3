package shared

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID("cap_")
	if !strings.HasPrefix(id, "cap_") {
		t.Errorf("expected prefix 'cap_', got '%s'", id)
	}
	if len(id) != len("cap_")+32 {
		t.Errorf("expected 32 hex chars after the prefix, got %d", len(id)-len("cap_"))
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID("x_")
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

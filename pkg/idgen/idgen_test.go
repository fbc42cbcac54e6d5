package idgen

import (
	"testing"
)

func TestNewID(t *testing.T) {
	id := NewID()
	if len(id) != 20 {
		t.Errorf("NewID() length = %d, want 20", len(id))
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestNewClientID(t *testing.T) {
	id := NewClientID()
	if len(id) != 20 {
		t.Errorf("NewClientID() length = %d, want 20", len(id))
	}
}

func TestNewRequestID(t *testing.T) {
	id := NewRequestID()
	if len(id) != 20 {
		t.Errorf("NewRequestID() length = %d, want 20", len(id))
	}
}

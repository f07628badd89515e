package store

import (
	"testing"
)

func TestRegistryUnknownDriver(t *testing.T) {
	if _, err := New(&DriverConfig{Driver: "does-not-exist"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRegisterAndNew(t *testing.T) {
	called := false
	Register("test-registry-driver", func(cfg *DriverConfig) (Driver, error) {
		called = true
		return nil, nil
	})

	if _, err := New(&DriverConfig{Driver: "test-registry-driver"}); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !called {
		t.Error("factory was not invoked")
	}

	found := false
	for _, name := range AvailableDrivers() {
		if name == "test-registry-driver" {
			found = true
		}
	}
	if !found {
		t.Error("registered driver missing from AvailableDrivers")
	}
}

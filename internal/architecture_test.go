package internal

import (
	"testing"

	"github.com/kcmvp/archunit"
)

func TestArchitecture(t *testing.T) {
	core := archunit.Packages("core", []string{
		".../internal/color",
		".../internal/light",
		".../internal/wled",
	})
	surfaces := archunit.Packages("surfaces", []string{
		".../internal/homekit",
		".../internal/mirror",
		".../internal/app",
		".../internal/platform",
	})

	// The colour/state machine and the device protocol know nothing about
	// how accessories are published.
	if err := core.ShouldNotReferLayers(surfaces); err != nil {
		t.Errorf("Architecture violation: core depends on surfaces: %v", err)
	}

	storage := archunit.Packages("storage", []string{
		".../internal/db",
		".../internal/storage",
		".../internal/registry",
	})
	if err := core.ShouldNotReferLayers(storage); err != nil {
		t.Errorf("Architecture violation: core depends on storage: %v", err)
	}
}

func TestLayersPresent(t *testing.T) {
	light := archunit.Packages("light", []string{".../internal/light"})
	if len(light.Packages()) == 0 {
		t.Error("No light package found")
	}
}

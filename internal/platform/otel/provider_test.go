package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/proving.grounds/internal/platform/otel"
)

func TestSettingsActive(t *testing.T) {
	tests := []struct {
		name string
		s    otel.Settings
		want bool
	}{
		{"no endpoint", otel.Settings{}, false},
		{"endpoint", otel.Settings{Endpoint: "http://localhost:4318"}, true},
		{"disabled", otel.Settings{Endpoint: "http://localhost:4318", Enabled: "FALSE"}, false},
		{"blank endpoint", otel.Settings{Endpoint: "  ", Enabled: "true"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Active(); got != tc.want {
				t.Fatalf("Active() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	t.Setenv("ARENA_OTEL_ENDPOINT", "")
	t.Setenv("ARENA_OTEL_ENABLED", "")
	t.Setenv("ARENA_OTEL_SAMPLE_RATIO", "")

	shutdown, err := otel.Setup(context.Background(), "arena-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should ignore cancelled context: %v", err)
	}
}

func TestInstallCreatesProvider(t *testing.T) {
	// Non-routable address so nothing is exported.
	shutdown, err := otel.Install(context.Background(), "arena-test", otel.Settings{
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: "0.5",
	})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInstallRejectsBadSampleRatio(t *testing.T) {
	for _, raw := range []string{"abc", "-0.1", "1.5"} {
		s := otel.Settings{Endpoint: "http://192.0.2.1:4318", SampleRatio: raw}
		if _, err := otel.Install(context.Background(), "ratio-test", s); err == nil {
			t.Fatalf("expected error for sample ratio %q", raw)
		}
	}
}

func TestInstallIgnoresRatioWhenInactive(t *testing.T) {
	if _, err := otel.Install(context.Background(), "ratio-test", otel.Settings{SampleRatio: "abc"}); err != nil {
		t.Fatalf("expected inactive settings to skip validation, got %v", err)
	}
}

package telemetry

import (
	"context"
	"testing"
)

func TestSetup(t *testing.T) {
	t.Run("NoopWhenEndpointEmpty", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), "meal-planner-test", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := shutdown(ctx); err != nil {
			t.Fatalf("noop shutdown should not error: %v", err)
		}
	})

	t.Run("CreatesProviderWhenEndpointSet", func(t *testing.T) {
		// Non-routable address so no export actually happens.
		shutdown, err := Setup(context.Background(), "meal-planner-test", "http://192.0.2.1:4318")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown error: %v", err)
		}
	})
}

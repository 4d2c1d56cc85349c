package tasks

import (
	"context"
	"errors"
	"testing"
)

func TestMemorySourceDrainsInOrder(t *testing.T) {
	source := NewMemorySource("ord-1", "ord-2", "ord-3")

	for _, want := range []string{"ord-1", "ord-2", "ord-3"} {
		got, err := source.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	}

	if _, err := source.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed on a drained source, got %v", err)
	}
}

func TestMemorySourcePush(t *testing.T) {
	source := NewMemorySource()
	source.Push("ord-late")

	got, err := source.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "ord-late" {
		t.Errorf("Expected ord-late, got %s", got)
	}
}

func TestMemorySourceContextCancellation(t *testing.T) {
	source := NewMemorySource("ord-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.Next(ctx); err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

package media

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFFProbeDuration(t *testing.T) {
	probe := NewFFProbe("ffprobe", time.Second)
	probe.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		wantArgs := []string{"-v", "error", "-show_entries", "format=duration", "-of", "json", "/tmp/upload.mp4"}
		if len(args) != len(wantArgs) {
			t.Fatalf("unexpected args length: got %d want %d", len(args), len(wantArgs))
		}
		for i, arg := range wantArgs {
			if args[i] != arg {
				t.Fatalf("unexpected arg at %d: got %q want %q", i, args[i], arg)
			}
		}
		return []byte(`{"format":{"duration":"123.456000"}}`), nil
	}

	seconds, err := probe.Duration(context.Background(), "/tmp/upload.mp4")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if seconds != 123.456 {
		t.Fatalf("unexpected duration: %v", seconds)
	}
}

func TestFFProbeDurationMissing(t *testing.T) {
	probe := NewFFProbe("ffprobe", time.Second)
	probe.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return []byte(`{"format":{}}`), nil
	}

	if _, err := probe.Duration(context.Background(), "/tmp/upload.mp4"); !errors.Is(err, ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
}

func TestFFProbeDurationCommandError(t *testing.T) {
	probe := NewFFProbe("", 0)
	probe.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}

	if _, err := probe.Duration(context.Background(), "/tmp/upload.mp4"); err == nil {
		t.Fatal("expected error when ffprobe fails")
	}
}

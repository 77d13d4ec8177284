package procstat

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestSamplerObservesLiveProcess(t *testing.T) {
	sampler := &Sampler{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sampler.Run(ctx, os.Getpid, 10*time.Millisecond)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if sample, ok := sampler.Latest(); ok {
			if sample.RSSBytes == 0 {
				t.Fatalf("expected non-zero RSS for own process, got %+v", sample)
			}
			if sample.SampledAt.IsZero() {
				t.Fatalf("sample timestamp not set: %+v", sample)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for a sample")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sampler did not stop after cancellation")
	}
}

func TestSamplerStopsWhenWorkerGone(t *testing.T) {
	sampler := &Sampler{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sampler.Run(context.Background(), func() int { return 0 }, 10*time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sampler did not stop for a missing worker")
	}

	if _, ok := sampler.Latest(); ok {
		t.Fatalf("no sample should have been taken for a missing worker")
	}
}

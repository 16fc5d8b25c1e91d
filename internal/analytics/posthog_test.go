package analytics

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostHogSinkBatchesToEndpoint(t *testing.T) {
	var mu sync.Mutex
	var batches []captureBatch
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var b captureBatch
		require.NoError(t, json.Unmarshal(body, &b))
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewPostHogSink(PostHogConfig{
		APIKey:   "phc_test",
		Endpoint: srv.URL,
	}, nil)

	sink.Enqueue(Event{Name: "experiment_assigned", DistinctID: "user-1"})
	sink.Enqueue(Event{Name: "experiment_exposure", DistinctID: "user-1"})
	require.NoError(t, sink.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1)
	require.Equal(t, "phc_test", batches[0].APIKey)
	require.Len(t, batches[0].Batch, 2)
	require.Equal(t, "experiment_assigned", batches[0].Batch[0].Event)
	require.Equal(t, int64(0), sink.Dropped())
}

func TestPostHogSinkCountsDropsWhenQueueFull(t *testing.T) {
	// no run goroutine: the queue never drains, so everything past the
	// first event drops
	sink := &PostHogSink{queue: make(chan Event, 1), log: zap.NewNop()}

	sink.Enqueue(Event{Name: "experiment_exposure", DistinctID: "user-1"})
	sink.Enqueue(Event{Name: "experiment_exposure", DistinctID: "user-2"})
	sink.Enqueue(Event{Name: "experiment_exposure", DistinctID: "user-3"})

	require.Equal(t, int64(2), sink.Dropped())
}

func TestPostHogSinkConcurrentEnqueue(t *testing.T) {
	sink := &PostHogSink{queue: make(chan Event, 1), log: zap.NewNop()}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Enqueue(Event{Name: "experiment_exposure", Timestamp: time.Now()})
		}()
	}
	wg.Wait()

	require.Equal(t, int64(31), sink.Dropped())
}

package hci

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunnerOrdering(t *testing.T) {
	r := NewTaskRunner()
	defer r.Stop()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		r.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestTaskRunnerStopJoins(t *testing.T) {
	r := NewTaskRunner()

	ran := make(chan struct{})
	r.Post(func() { close(ran) })
	<-ran

	r.Stop()
	// Stop twice must not hang or panic.
	r.Stop()

	// Posting after Stop is a no-op.
	r.Post(func() { t.Error("task ran after Stop") })
	time.Sleep(20 * time.Millisecond)
}

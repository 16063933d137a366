package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadNode(t *testing.T) {
	_, err := New(-1)
	assert.Error(t, err)

	_, err = New(1024)
	assert.Error(t, err)
}

func TestNextID_UniqueAcrossGoroutines(t *testing.T) {
	g, err := New(1)
	require.NoError(t, err)

	const workers, per = 8, 500
	ids := make(chan int64, workers*per)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				ids <- g.NextID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, workers*per)
	for id := range ids {
		assert.Positive(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*per)
}

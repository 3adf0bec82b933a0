package shared

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNumberGeneratorFormat(t *testing.T) {
	gen := NewNumberGenerator("BILL")
	gen.clock = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	number := gen.Next()
	require.True(t, strings.HasPrefix(number, "BILL-20250304050607-0001-"), number)
	require.Len(t, number, len("BILL-20250304050607-0001-")+5)
}

func TestNumberGeneratorUniqueUnderConcurrency(t *testing.T) {
	gen := NewNumberGenerator("BILL")
	frozen := time.Now()
	gen.clock = func() time.Time { return frozen }

	const workers = 16
	const perWorker = 250
	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, gen.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, n := range local {
				seen[n] = struct{}{}
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*perWorker)
}

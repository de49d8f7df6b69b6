package hash

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	a := Sum([]byte("topic"), []byte("data"))
	require.Equal(t, a, Sum([]byte("topicdata")))
	require.NotEqual(t, a, Sum([]byte("topic"), []byte("other")))
	require.NotEqual(t, [Size]byte{}, Sum())
}

func TestSumConcurrent(t *testing.T) {
	expected := Sum([]byte("payload"))
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				require.Equal(t, expected, Sum([]byte("pay"), []byte("load")))
			}
		}()
	}
	wg.Wait()
}

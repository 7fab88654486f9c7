package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunToken_ReturnsSameToken(t *testing.T) {
	gen := NewFixedRunToken("test-run-123")

	assert.Equal(t, "test-run-123", gen.Generate())
	assert.Equal(t, "test-run-123", gen.Generate())
}

func TestFixedRunToken_EmptyTokenDefault(t *testing.T) {
	gen := NewFixedRunToken("")
	assert.Equal(t, DefaultRunToken, gen.Generate())
}

func TestFixedRunToken_ThreadSafe(t *testing.T) {
	gen := NewFixedRunToken("shared")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared", gen.Generate())
			}
		}()
	}
	wg.Wait()
}

package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/puget/internal/table"
)

func TestFixedRunIDGenerator(t *testing.T) {
	gen := NewFixedRunIDGenerator("run-123")
	assert.Equal(t, "run-123", gen.Generate())
	assert.Equal(t, "run-123", gen.Generate())

	assert.Equal(t, DefaultRunID, NewFixedRunIDGenerator("").Generate())
}

func TestFixedRunIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedRunIDGenerator("shared")

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

func TestTable(t *testing.T) {
	tbl := Table(t, []string{"id", "entry"},
		[]any{1, Day(2020, time.March, 4)},
		[]any{2, nil})

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, Ints(1, 2), Column(t, tbl, "id"))
	assert.Equal(t, table.Date(2020, time.March, 4), tbl.Get(0, "entry"))
	assert.True(t, table.IsNull(tbl.Get(1, "entry")))
}

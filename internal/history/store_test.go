package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-relay/internal/model"
)

func msg(i int) model.Message {
	return model.Message{ID: fmt.Sprintf("wamid.%d", i), Text: fmt.Sprintf("m%d", i), Type: model.TextMessage}
}

func TestStore_AppendNewestFirst(t *testing.T) {
	s := New(5)
	for i := 0; i < 3; i++ {
		s.Append(msg(i))
	}

	got, count := s.List()
	require.Equal(t, 3, count)
	assert.Equal(t, "wamid.2", got[0].ID)
	assert.Equal(t, "wamid.1", got[1].ID)
	assert.Equal(t, "wamid.0", got[2].ID)
}

func TestStore_CapacityKeepsLastInserted(t *testing.T) {
	for _, tc := range []struct{ n, c int }{{0, 3}, {1, 3}, {3, 3}, {4, 3}, {1, 1}, {5, 1}, {50, 7}, {250, 100}} {
		t.Run(fmt.Sprintf("n=%d/c=%d", tc.n, tc.c), func(t *testing.T) {
			s := New(tc.c)
			for i := 0; i < tc.n; i++ {
				s.Append(msg(i))
			}

			got, count := s.List()
			want := min(tc.n, tc.c)
			require.Equal(t, want, count)
			require.Len(t, got, want)
			for j := 0; j < want; j++ {
				assert.Equal(t, fmt.Sprintf("wamid.%d", tc.n-1-j), got[j].ID)
			}
		})
	}
}

func TestStore_ListIsSnapshot(t *testing.T) {
	s := New(2)
	s.Append(msg(1))

	got, _ := s.List()
	got[0].Text = "changed"
	s.Append(msg(2))

	again, _ := s.List()
	assert.Equal(t, "m1", again[1].Text)
	assert.Len(t, got, 1)
}

func TestStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Equal(t, DefaultCapacity, New(-4).Cap())
	assert.Equal(t, 50, New(50).Cap())
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := New(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append(msg(g*1000 + i))
				_, count := s.List()
				assert.LessOrEqual(t, count, 50)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

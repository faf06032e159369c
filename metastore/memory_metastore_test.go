package metastore

import (
	"context"
	"sync"
	"testing"

	"github.com/danthegoodman1/icemor/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMetaStorePendingLifecycle(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryMetaStore()

	a := model.NewFileGroupID("2023/01/01", "a")
	b := model.NewFileGroupID("2023/01/01", "b")
	c := model.NewFileGroupID("2023/01/02", "a")

	require.NoError(t, ms.AddPendingPlan(ctx, "events", "100", []model.FileGroupID{a, b}))

	err := ms.AddPendingPlan(ctx, "events", "200", []model.FileGroupID{c, b})
	assert.ErrorIs(t, err, ErrFileGroupPending)

	pending, err := ms.ListPendingFileGroups(ctx, "events")
	require.NoError(t, err)
	// the rejected plan recorded nothing
	assert.Equal(t, map[model.FileGroupID]string{a: "100", b: "100"}, pending)

	// tables are independent
	require.NoError(t, ms.AddPendingPlan(ctx, "clicks", "200", []model.FileGroupID{a}))

	require.NoError(t, ms.CompletePlan(ctx, "events", "100"))
	pending, err = ms.ListPendingFileGroups(ctx, "events")
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, ms.CompletePlan(ctx, "events", "100"), ErrPlanNotPending)

	pending, err = ms.ListPendingFileGroups(ctx, "clicks")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	require.NoError(t, ms.Shutdown(ctx))
}

func TestMemoryMetaStoreConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryMetaStore()
	id := model.NewFileGroupID("p", "contended")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := ms.AddPendingPlan(ctx, "t", string(rune('a'+i)), []model.FileGroupID{id}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

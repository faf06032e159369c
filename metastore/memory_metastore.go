package metastore

import (
	"context"
	"fmt"
	"sync"

	"github.com/danthegoodman1/icemor/model"
)

type (
	MemoryMetaStore struct {
		mu sync.Mutex
		// table -> file group -> instant
		pending map[string]map[model.FileGroupID]string
	}
)

func NewMemoryMetaStore() *MemoryMetaStore {
	return &MemoryMetaStore{pending: make(map[string]map[model.FileGroupID]string)}
}

func (mms *MemoryMetaStore) AddPendingPlan(_ context.Context, table, instant string, ids []model.FileGroupID) error {
	mms.mu.Lock()
	defer mms.mu.Unlock()

	tbl, ok := mms.pending[table]
	if !ok {
		tbl = make(map[model.FileGroupID]string)
		mms.pending[table] = tbl
	}
	for _, id := range ids {
		if existing, exists := tbl[id]; exists {
			return fmt.Errorf("%w: %s at %s", ErrFileGroupPending, id, existing)
		}
	}
	for _, id := range ids {
		tbl[id] = instant
	}
	return nil
}

func (mms *MemoryMetaStore) ListPendingFileGroups(_ context.Context, table string) (map[model.FileGroupID]string, error) {
	mms.mu.Lock()
	defer mms.mu.Unlock()

	out := make(map[model.FileGroupID]string, len(mms.pending[table]))
	for id, inst := range mms.pending[table] {
		out[id] = inst
	}
	return out, nil
}

func (mms *MemoryMetaStore) CompletePlan(_ context.Context, table, instant string) error {
	mms.mu.Lock()
	defer mms.mu.Unlock()

	removed := 0
	for id, inst := range mms.pending[table] {
		if inst == instant {
			delete(mms.pending[table], id)
			removed++
		}
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s/%s", ErrPlanNotPending, table, instant)
	}
	return nil
}

func (mms *MemoryMetaStore) Shutdown(_ context.Context) error {
	return nil
}

package memory

import (
	"context"
	"time"

	"compliance-navigator-be/internal/model"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type WorkbenchRepository struct {
	cache *cache.Cache
}

// NewWorkbenchRepository keeps workbenches for idleTTL after their last use.
// onEvicted runs for expired and deleted workbenches alike.
func NewWorkbenchRepository(idleTTL time.Duration, onEvicted func(*model.Workbench)) *WorkbenchRepository {
	c := cache.New(idleTTL, idleTTL/6+time.Second)
	c.OnEvicted(func(_ string, v interface{}) {
		wb := v.(*model.Workbench)
		wb.Coordinator.Close(context.Background())
		if onEvicted != nil {
			onEvicted(wb)
		}
	})
	return &WorkbenchRepository{cache: c}
}

func (r *WorkbenchRepository) Save(wb *model.Workbench) {
	r.cache.Set(wb.ID.String(), wb, cache.DefaultExpiration)
}

// Get returns the workbench and refreshes its idle deadline.
func (r *WorkbenchRepository) Get(id uuid.UUID) (*model.Workbench, bool) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, false
	}
	wb := x.(*model.Workbench)
	r.cache.Set(id.String(), wb, cache.DefaultExpiration)
	return wb, true
}

func (r *WorkbenchRepository) Delete(id uuid.UUID) bool {
	if _, found := r.cache.Get(id.String()); !found {
		return false
	}
	r.cache.Delete(id.String())
	return true
}

func (r *WorkbenchRepository) Count() int {
	return r.cache.ItemCount()
}

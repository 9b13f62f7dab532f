package occlusion

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-vis/internal/engine/renderer"
	"github.com/Faultbox/midgard-vis/pkg/geom"
)

// Hardware issues device occlusion queries, one query object per slot.
type Hardware struct {
	dev    renderer.Device
	slots  []renderer.QueryID
	active map[int]bool

	// failed counts allocations refused while no slot was live.
	failed int
}

// NewHardware returns an empty pool on dev.
func NewHardware(dev renderer.Device) *Hardware {
	return &Hardware{dev: dev, active: make(map[int]bool)}
}

func (h *Hardware) Software() bool { return false }

func (h *Hardware) Allocate(index int) bool {
	if index < 0 {
		return false
	}
	for len(h.slots) <= index {
		h.slots = append(h.slots, 0)
	}
	if h.slots[index] != 0 {
		return true
	}
	id, ok := h.dev.CreateOcclusionQuery()
	if !ok {
		if h.Live() == 0 {
			h.failed++
		}
		return false
	}
	h.slots[index] = id
	return true
}

func (h *Hardware) Release(index int) {
	if index < 0 || index >= len(h.slots) || h.slots[index] == 0 {
		return
	}
	if h.active[index] {
		h.dev.EndQuery(h.slots[index])
		delete(h.active, index)
	}
	h.dev.DestroyOcclusionQuery(h.slots[index])
	h.slots[index] = 0
}

// Live returns the number of allocated slots.
func (h *Hardware) Live() int {
	n := 0
	for _, id := range h.slots {
		if id != 0 {
			n++
		}
	}
	return n
}

// Degraded reports that the device refused a query with no query alive,
// which means it has stopped supporting them.
func (h *Hardware) Degraded() bool { return h.failed > 0 }

func (h *Hardware) BeginFrame(mgl32.Mat4) {}

func (h *Hardware) AddOccluder(geom.AABB, mgl32.Mat4) {}

func (h *Hardware) slot(q *Query) renderer.QueryID {
	if q == nil || q.Index < 0 || q.Index >= len(h.slots) {
		return 0
	}
	return h.slots[q.Index]
}

func (h *Hardware) Begin(q *Query) {
	if id := h.slot(q); id != 0 {
		h.dev.BeginQuery(id)
		h.active[q.Index] = true
	}
}

func (h *Hardware) End(q *Query) {
	if id := h.slot(q); id != 0 && h.active[q.Index] {
		h.dev.EndQuery(id)
		delete(h.active, q.Index)
	}
}

func (h *Hardware) Result(q *Query, wait bool) (bool, int) {
	id := h.slot(q)
	if id == 0 {
		return false, 0
	}
	return h.dev.QueryResult(id, wait)
}

// Close destroys every query object. Slots left mid-query are reported.
func (h *Hardware) Close() error {
	var err error
	for index, id := range h.slots {
		if id == 0 {
			continue
		}
		if h.active[index] {
			err = multierr.Append(err, fmt.Errorf("query slot %d closed while active", index))
		}
		h.Release(index)
	}
	h.slots = nil
	return err
}

var _ Backend = (*Hardware)(nil)

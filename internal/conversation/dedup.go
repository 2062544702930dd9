package conversation

import "sync"

// dedup remembers the most recent transport ids per tenant inside a
// bounded window, along with the record ref each id landed as. The
// window caps memory; ids older than the last capacity writes may be
// recorded twice, which downstream consumers tolerate.
type dedup struct {
	mu       sync.Mutex
	capacity int
	tenants  map[int64]*window
}

type window struct {
	refs  map[string]string
	order []string
}

func newDedup(capacity int) *dedup {
	if capacity <= 0 {
		capacity = 512
	}
	return &dedup{
		capacity: capacity,
		tenants:  make(map[int64]*window),
	}
}

// claim marks the transport id as seen and reports whether it was new.
// A repeat claim returns the ref the id was committed under, which is
// empty while the first write is still in flight. Events without a
// transport id are never deduplicated.
func (d *dedup) claim(tenantID int64, transportID string) (string, bool) {
	if transportID == "" {
		return "", true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.tenants[tenantID]
	if w == nil {
		w = &window{refs: make(map[string]string)}
		d.tenants[tenantID] = w
	}
	if ref, seen := w.refs[transportID]; seen {
		return ref, false
	}
	w.refs[transportID] = ""
	w.order = append(w.order, transportID)
	if len(w.order) > d.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.refs, oldest)
	}
	return "", true
}

// commit records the ref a claimed transport id was written under.
func (d *dedup) commit(tenantID int64, transportID, ref string) {
	if transportID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.tenants[tenantID]
	if w == nil {
		return
	}
	if _, seen := w.refs[transportID]; seen {
		w.refs[transportID] = ref
	}
}

// forget releases a claim so a failed write can be retried later.
func (d *dedup) forget(tenantID int64, transportID string) {
	if transportID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.tenants[tenantID]
	if w == nil {
		return
	}
	if _, seen := w.refs[transportID]; !seen {
		return
	}
	delete(w.refs, transportID)
	for i := len(w.order) - 1; i >= 0; i-- {
		if w.order[i] == transportID {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

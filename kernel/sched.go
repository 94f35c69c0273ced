package kernel

// eligible reports whether t may be picked by core. A thread running on or
// reserved by the other core is never a candidate.
func eligible(t *thread, core int) bool {
	return t != nil &&
		t.status == StatusReady &&
		t.affinity.allows(core) &&
		(t.core < 0 || int(t.core) == core)
}

// selectFor returns the best candidate for core: highest priority, then
// earliest created. With no candidate it falls back to the core's idle
// thread. ok is false if even that is gone.
func (st *state) selectFor(core int) (*thread, bool) {
	var best *thread
	for _, t := range st.slots {
		if !eligible(t, core) {
			continue
		}
		if best == nil || t.priority > best.priority ||
			(t.priority == best.priority && t.seq < best.seq) {
			best = t
		}
	}
	if best != nil {
		return best, true
	}
	if idle := st.lookup(st.idle[core]); idle != nil {
		return idle, true
	}
	return nil, false
}

// scheduleLocked is the per-core scheduling step. It picks a new thread only
// when no switch is already in flight on core, and reports whether core
// must switch. The caller holds the kernel lock.
func (k *Kernel) scheduleLocked(st *state, core int) (bool, error) {
	cur := &st.cores[core]
	if cur.current == cur.next {
		t, ok := st.selectFor(core)
		if !ok {
			return false, opError("schedule", ErrHalted, "no runnable thread and no idle thread")
		}
		cur.selected = t.id
		cur.next = t.id
		t.core = int8(core)
	}
	return cur.current != cur.next, nil
}

package kernel

import "alkyn/hal"

// Names are a flat map. Registering a taken name moves it to the new
// thread; killing a thread drops its names.

func (k *Kernel) lookupName(cpu hal.CPU, name string) (ThreadID, bool) {
	var id ThreadID
	var ok bool
	k.withState(cpu, func(st *state) {
		id, ok = st.names[name]
		if ok && st.lookup(id) == nil {
			ok = false
		}
	})
	return id, ok
}

func (k *Kernel) nameOf(cpu hal.CPU, id ThreadID) (string, bool) {
	var name string
	var ok bool
	k.withState(cpu, func(st *state) {
		if t := st.lookup(id); t != nil && t.name != "" && st.names[t.name] == id {
			name, ok = t.name, true
		}
	})
	return name, ok
}

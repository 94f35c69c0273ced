package kernel

import "alkyn/hal"

// ThreadInfo is a copy of one thread's control record.
type ThreadInfo struct {
	ID         ThreadID
	Name       string
	Priority   uint8
	Status     Status
	Affinity   Affinity
	Core       int
	Privileged bool
	Idle       bool
	SleepTicks uint32
	StackWords int
	SP         int
	Mailbox    int
}

type CoreInfo struct {
	Current, Next, Selected ThreadID
}

// Snapshot is a consistent copy of the kernel state, taken in one critical
// section.
type Snapshot struct {
	Ticks   uint64
	Counter uint64
	Cores   [hal.NumCores]CoreInfo
	Threads []ThreadInfo
}

// Thread finds a thread by handle.
func (s Snapshot) Thread(id ThreadID) (ThreadInfo, bool) {
	for _, t := range s.Threads {
		if t.ID == id {
			return t, true
		}
	}
	return ThreadInfo{}, false
}

// ByName finds the first thread with the given name.
func (s Snapshot) ByName(name string) (ThreadInfo, bool) {
	for _, t := range s.Threads {
		if t.Name == name {
			return t, true
		}
	}
	return ThreadInfo{}, false
}

func (k *Kernel) snapshot(cpu hal.CPU) Snapshot {
	var s Snapshot
	k.withState(cpu, func(st *state) {
		s.Ticks = st.ticks
		s.Counter = st.counter
		for i, c := range st.cores {
			s.Cores[i] = CoreInfo{Current: c.current, Next: c.next, Selected: c.selected}
		}
		s.Threads = make([]ThreadInfo, 0, st.live)
		for _, t := range st.slots {
			if t == nil {
				continue
			}
			s.Threads = append(s.Threads, ThreadInfo{
				ID:         t.id,
				Name:       t.name,
				Priority:   t.priority,
				Status:     t.status,
				Affinity:   t.affinity,
				Core:       int(t.core),
				Privileged: t.privileged,
				Idle:       t.idle,
				SleepTicks: t.sleepTicks,
				StackWords: len(t.stack),
				SP:         t.sp,
				Mailbox:    t.mail.len(),
			})
		}
	})
	return s
}

package kernel

import (
	"fmt"
	"strings"
	"sync"
)

// ThreadID names one incarnation of a thread slot. The low 16 bits are the
// slot, the high 16 bits the slot's generation when the thread was created.
// The zero value is never issued.
type ThreadID uint32

func makeID(slot int, gen uint16) ThreadID {
	return ThreadID(uint32(slot)&0xFFFF | uint32(gen)<<16)
}

func (id ThreadID) Slot() int   { return int(id & 0xFFFF) }
func (id ThreadID) Gen() uint16 { return uint16(id >> 16) }

// Valid reports whether id could have been issued. It does not check that
// the thread is still alive.
func (id ThreadID) Valid() bool { return id.Gen() != 0 }

func (id ThreadID) String() string {
	if !id.Valid() {
		return "-"
	}
	return fmt.Sprintf("%d.%d", id.Slot(), id.Gen())
}

type Status uint8

const (
	StatusReady Status = iota
	StatusSleeping
	StatusMailPending
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusSleeping:
		return "sleeping"
	case StatusMailPending:
		return "mailpending"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// ParseStatus accepts the names printed by Status.String.
func ParseStatus(s string) (Status, error) {
	for st := StatusReady; st <= StatusMailPending; st++ {
		if strings.EqualFold(s, st.String()) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Affinity restricts the cores a thread may run on.
type Affinity uint8

const (
	AffinityAny Affinity = iota
	AffinityCore0
	AffinityCore1
)

func (a Affinity) allows(core int) bool {
	switch a {
	case AffinityAny:
		return true
	case AffinityCore0:
		return core == 0
	case AffinityCore1:
		return core == 1
	}
	return false
}

func (a Affinity) valid() bool { return a <= AffinityCore1 }

func (a Affinity) String() string {
	switch a {
	case AffinityAny:
		return "any"
	case AffinityCore0:
		return "core0"
	case AffinityCore1:
		return "core1"
	default:
		return fmt.Sprintf("Affinity(%d)", uint8(a))
	}
}

// ParseAffinity accepts "any", "core0", "core1", "0" and "1".
func ParseAffinity(s string) (Affinity, error) {
	switch strings.ToLower(s) {
	case "any", "*":
		return AffinityAny, nil
	case "core0", "0":
		return AffinityCore0, nil
	case "core1", "1":
		return AffinityCore1, nil
	}
	return 0, fmt.Errorf("unknown affinity %q", s)
}

// ThreadConfig holds the creation parameters of a thread.
type ThreadConfig struct {
	Priority   uint8
	Privileged bool
	Affinity   Affinity
}

// DefaultThreadConfig is what CreateThread and Spawn use.
func DefaultThreadConfig() ThreadConfig {
	return ThreadConfig{Priority: 1, Affinity: AffinityAny}
}

// thread is the control record. Fields other than onCore and gctx are
// guarded by the kernel lock.
type thread struct {
	id         ThreadID
	name       string
	stack      []uint32
	sp         int
	privileged bool
	priority   uint8
	status     Status
	sleepTicks uint32
	// core is the core running or reserving the thread, -1 for none.
	core     int8
	affinity Affinity
	seq      uint64
	idle     bool
	entry    func(*Context)
	mail     mailbox

	// onCore is written by the switching core before it hands over the
	// baton and read by the thread after it receives it.
	onCore int
	gctx   goroutineContext
}

type goroutineContext struct {
	baton    chan struct{}
	dead     chan struct{}
	started  bool
	killOnce sync.Once
}

func (t *thread) killed() bool {
	select {
	case <-t.gctx.dead:
		return true
	default:
		return false
	}
}

type cursor struct {
	current  ThreadID
	next     ThreadID
	selected ThreadID
}

// state is everything guarded by the kernel lock.
type state struct {
	slots []*thread
	gens  []uint16
	live  int

	cores [2]cursor
	idle  [2]ThreadID

	inited      bool
	tickEnabled bool
	counter     uint64
	prevCnt     uint32
	ticks       uint64
	seq         uint64
	names       map[string]ThreadID
}

func newState(max int) state {
	return state{
		slots: make([]*thread, max),
		gens:  make([]uint16, max),
		names: make(map[string]ThreadID),
	}
}

// lookup returns the live thread behind id, or nil if the handle is stale.
func (st *state) lookup(id ThreadID) *thread {
	if !id.Valid() || id.Slot() >= len(st.slots) {
		return nil
	}
	t := st.slots[id.Slot()]
	if t == nil || t.id != id {
		return nil
	}
	return t
}

func (st *state) full() bool { return st.live == len(st.slots) }

// insert places t in the lowest free slot and assigns its handle.
func (st *state) insert(t *thread) bool {
	for i, s := range st.slots {
		if s != nil {
			continue
		}
		if st.gens[i] == 0 {
			st.gens[i] = 1
		}
		t.id = makeID(i, st.gens[i])
		st.slots[i] = t
		st.live++
		return true
	}
	return false
}

// remove frees t's slot. The generation moves on so old handles go stale.
func (st *state) remove(t *thread) {
	i := t.id.Slot()
	if st.slots[i] != t {
		return
	}
	st.slots[i] = nil
	st.live--
	st.gens[i]++
	if st.gens[i] == 0 {
		st.gens[i] = 1
	}
	for name, id := range st.names {
		if id == t.id {
			delete(st.names, name)
		}
	}
	t.mail = nil
	t.core = -1
}

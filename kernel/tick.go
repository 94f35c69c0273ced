package kernel

// tickISR is core 0's timer interrupt: account time, wake sleepers, run the
// scheduling step for core 0 and ring core 1.
func (k *Kernel) tickISR(c *coreState) {
	var (
		fired, pend bool
		err         error
	)
	k.withState(c.cpu, func(st *state) {
		if !st.inited {
			return
		}
		fired = true
		cnt := k.timer.Counter()
		st.counter += uint64(cnt - st.prevCnt)
		st.prevCnt = cnt
		st.ticks++
		for _, t := range st.slots {
			if t == nil || t.status != StatusSleeping {
				continue
			}
			if t.sleepTicks > 0 {
				t.sleepTicks--
			}
			if t.sleepTicks == 0 {
				t.status = StatusReady
			}
		}
		pend, err = k.scheduleLocked(st, c.id)
		k.ticks.Store(st.ticks)
		k.stamp.Store(st.counter)
	})
	if err != nil {
		k.fatal(c.id, err)
		return
	}
	if !fired {
		return
	}
	if pend {
		c.pendSwitch()
	}
	for _, o := range k.cores {
		if o != c {
			k.bell.Ring(o.id)
		}
	}
}

// doorbellISR runs the scheduling step for a core that was rung.
func (k *Kernel) doorbellISR(c *coreState) {
	var pend bool
	var err error
	k.withState(c.cpu, func(st *state) {
		if st.inited {
			pend, err = k.scheduleLocked(st, c.id)
		}
	})
	if err != nil {
		k.fatal(c.id, err)
		return
	}
	if pend {
		c.pendSwitch()
	}
}

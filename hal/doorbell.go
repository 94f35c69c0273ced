package hal

// chanDoorbell delivers inter-core interrupts over one-slot channels.
type chanDoorbell struct {
	ch [NumCores]chan struct{}
}

func newChanDoorbell() *chanDoorbell {
	d := &chanDoorbell{}
	for i := range d.ch {
		d.ch[i] = make(chan struct{}, 1)
	}
	return d
}

func (d *chanDoorbell) Ring(core int) {
	if core < 0 || core >= NumCores {
		return
	}
	select {
	case d.ch[core] <- struct{}{}:
	default:
	}
}

func (d *chanDoorbell) Rings(core int) <-chan struct{} {
	if core < 0 || core >= NumCores {
		return nil
	}
	return d.ch[core]
}

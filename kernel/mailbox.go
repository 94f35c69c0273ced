package kernel

// MailboxOrder selects which end of a mailbox Receive takes from.
type MailboxOrder uint8

const (
	MailboxLIFO MailboxOrder = iota
	MailboxFIFO
)

func (o MailboxOrder) String() string {
	if o == MailboxFIFO {
		return "fifo"
	}
	return "lifo"
}

// mailbox is an unbounded queue of envelopes, guarded by the kernel lock.
type mailbox []Envelope

func (m *mailbox) push(e Envelope) {
	*m = append(*m, e)
}

func (m *mailbox) pop(order MailboxOrder) (Envelope, bool) {
	q := *m
	if len(q) == 0 {
		return Envelope{}, false
	}
	var e Envelope
	if order == MailboxFIFO {
		e = q[0]
		q[0] = Envelope{}
		q = q[1:]
	} else {
		e = q[len(q)-1]
		q[len(q)-1] = Envelope{}
		q = q[:len(q)-1]
	}
	if len(q) == 0 {
		q = nil
	}
	*m = q
	return e, true
}

// unpop puts e back where the next pop will find it.
func (m *mailbox) unpop(order MailboxOrder, e Envelope) {
	if order == MailboxFIFO {
		*m = append(mailbox{e}, *m...)
		return
	}
	m.push(e)
}

func (m mailbox) len() int { return len(m) }

package kernel

import "fmt"

// PayloadKind says which accessor of a Payload is valid.
type PayloadKind uint8

const (
	KindNone PayloadKind = iota
	KindWord
	KindText
	KindBytes
	KindHandle
)

func (k PayloadKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWord:
		return "word"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindHandle:
		return "handle"
	default:
		return fmt.Sprintf("PayloadKind(%d)", uint8(k))
	}
}

// Payload is a tagged variant. The zero value carries nothing.
type Payload struct {
	kind PayloadKind
	word uint32
	text string
	buf  []byte
}

func Word(v uint32) Payload { return Payload{kind: KindWord, word: v} }
func Text(s string) Payload { return Payload{kind: KindText, text: s} }

// Bytes wraps b without copying. The sender must not touch b afterwards.
func Bytes(b []byte) Payload { return Payload{kind: KindBytes, buf: b} }

func Handle(id ThreadID) Payload { return Payload{kind: KindHandle, word: uint32(id)} }

func (p Payload) Kind() PayloadKind { return p.kind }

func (p Payload) mismatch(want PayloadKind) error {
	return opError("payload", ErrTypeMismatch, "have "+p.kind.String()+", want "+want.String())
}

func (p Payload) Word() (uint32, error) {
	if p.kind != KindWord {
		return 0, p.mismatch(KindWord)
	}
	return p.word, nil
}

func (p Payload) Text() (string, error) {
	if p.kind != KindText {
		return "", p.mismatch(KindText)
	}
	return p.text, nil
}

func (p Payload) Bytes() ([]byte, error) {
	if p.kind != KindBytes {
		return nil, p.mismatch(KindBytes)
	}
	return p.buf, nil
}

func (p Payload) Handle() (ThreadID, error) {
	if p.kind != KindHandle {
		return 0, p.mismatch(KindHandle)
	}
	return ThreadID(p.word), nil
}

func (p Payload) String() string {
	switch p.kind {
	case KindWord:
		return fmt.Sprintf("word(%d)", p.word)
	case KindText:
		return fmt.Sprintf("text(%q)", p.text)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(p.buf))
	case KindHandle:
		return "handle(" + ThreadID(p.word).String() + ")"
	default:
		return "none"
	}
}

// Tag is an application-defined message type.
type Tag uint16

// Envelope is one message in a mailbox. From is zero for messages sent from
// outside any kernel thread.
type Envelope struct {
	From ThreadID
	Tag  Tag
	Payload
}

package serial

import (
	"encoding/binary"
	"io"

	"github.com/solidframe/solidframe/internal/protocol"
)

// Outcome mirrors protocol.Outcome: the serialization engine drives the
// same restartable Success/Wait/Continue/Yield/Failure state machine as
// the protocol writer it is built on (spec 4.4's serializer is, like the
// writer, "a stack of frames ... plus an input/output byte window").
type Outcome = protocol.Outcome

const (
	Success  = protocol.Success
	Wait     = protocol.Wait
	Continue = protocol.Continue
	Yield    = protocol.Yield
	Failure  = protocol.Failure
)

// SendFunc is the non-blocking transport write callback, identical in
// shape to protocol.SendFunc.
type SendFunc = protocol.SendFunc

// Serializer renders registered Go values onto the wire using the fixed-
// width-integer, cross-encoded-length wire format from spec 4.6. It is
// built directly on protocol.Writer: both engines need the identical
// restartable, never-blocking frame-stack buffering discipline, so the
// serializer reuses the writer rather than re-implementing it (see
// DESIGN.md).
type Serializer struct {
	w     *protocol.Writer
	types *TypeIDMap
}

// NewSerializer constructs a Serializer that hands completed output to
// send, using types to resolve polymorphic pointers.
func NewSerializer(send SendFunc, types *TypeIDMap, opts ...protocol.WriterOption) (*Serializer, error) {
	w, err := protocol.NewWriter(send, opts...)
	if err != nil {
		return nil, err
	}
	return &Serializer{w: w, types: types}, nil
}

// Run drives the underlying writer until it blocks, yields, fails, or
// drains its queued work. Once the queue has drained, any bytes still
// buffered below the writer's flush threshold are flushed before Success
// is reported.
func (s *Serializer) Run() Outcome {
	o := s.w.Run()
	if o == Success && s.w.Pending() > 0 {
		s.w.PushFlushAll()
		o = s.w.Run()
	}
	return o
}

// Err returns the error that caused the last Failure outcome, if any.
func (s *Serializer) Err() error {
	return s.w.Err()
}

// Empty reports whether there is no queued serialization work left.
func (s *Serializer) Empty() bool {
	return s.w.Empty()
}

// PushFlushAll queues an unconditional flush of any buffered bytes at this
// point in the push sequence. Run also flushes whatever is still buffered
// once its queue drains.
func (s *Serializer) PushFlushAll() {
	s.w.PushFlushAll()
}

// PushUint32 queues a fixed-width little-endian uint32.
func (s *Serializer) PushUint32(v uint32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	s.w.PushPutAtom(b)
}

// PushUint64 queues a fixed-width little-endian uint64.
func (s *Serializer) PushUint64(v uint64) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	s.w.PushPutAtom(b)
}

// PushBool queues a single byte: 1 for true, 0 for false. Bit-packed
// vectors of bool are handled by PushBoolSlice, not this method (spec
// 4.4: "Booleans in bit-packed vectors pack 8 per byte; individual
// booleans are one byte").
func (s *Serializer) PushBool(v bool) {
	var b byte
	if v {
		b = 1
	}
	s.w.PushPutChar(b)
}

// PushString queues a cross-encoded length prefix followed by the raw
// string bytes.
func (s *Serializer) PushString(str string) {
	s.w.PushPutAtom(encodeCross(uint64(len(str))))
	s.w.PushPutAtom([]byte(str))
}

// PushLen queues a bare cross-encoded length or count prefix, the
// building block every container push uses ahead of its elements.
func (s *Serializer) PushLen(n int) {
	s.w.PushPutAtom(encodeCross(uint64(n)))
}

// PushUint32Slice queues a cross-encoded element count followed by each
// element as a fixed-width uint32, matching spec 4.4's container
// encoding "(count, element, element, ...)".
func (s *Serializer) PushUint32Slice(vals []uint32) {
	s.PushLen(len(vals))
	for _, v := range vals {
		s.PushUint32(v)
	}
}

// PushBoolSlice queues a cross-encoded element count followed by the
// elements bit-packed 8 per byte.
func (s *Serializer) PushBoolSlice(vals []bool) {
	s.PushLen(len(vals))

	packed := make([]byte, (len(vals)+7)/8)
	for i, v := range vals {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	s.w.PushPutAtom(packed)
}

// PushPointer queues a polymorphic value: the registered (protocol_id,
// type_id) pair, followed by the value's own serialized payload (spec
// 4.4: "Serializing a polymorphic pointer writes the pair followed by
// the target type's payload").
func (s *Serializer) PushPointer(v interface{}) error {
	e, err := s.types.lookupByValue(v)
	if err != nil {
		return err
	}
	s.w.PushPutAtom([]byte{e.key.ProtocolID, e.key.TypeID})
	return e.store(s, v)
}

// PushPointerSlice queues a cross-encoded element count followed by each
// element as a polymorphic pointer (spec S3: a container of a base
// pointer type whose elements carry their own dynamic type tag).
func (s *Serializer) PushPointerSlice(vals []interface{}) error {
	s.PushLen(len(vals))
	for _, v := range vals {
		if err := s.PushPointer(v); err != nil {
			return err
		}
	}
	return nil
}

// PushStream queues a u64 size header followed by size bytes drained
// from r, matching spec 4.6's wire format for streams and spec 4.4's
// "large payloads are emitted through the stream-writing callback".
func (s *Serializer) PushStream(r io.Reader, size int64) {
	s.PushUint64(uint64(size))
	s.w.PushPutStream(r, size)
}

// SerializeStageFunc is a single phase of a re-entrant, multi-step
// serialization performed via PushCall (spec 4.4: "pushCall(fn, stage,
// err) lets user code implement multi-phase serialization ... without
// blocking the engine").
type SerializeStageFunc func(s *Serializer, stage int) (done bool, err error)

// PushCall queues a re-entrant callback that may itself push further
// frames and runs again, with an incrementing stage counter, until it
// reports done or an error.
func (s *Serializer) PushCall(fn SerializeStageFunc) {
	stage := 0
	var loop func(w *protocol.Writer)
	loop = func(w *protocol.Writer) {
		done, err := fn(s, stage)
		stage++
		if err != nil {
			w.PushFail(err)
			return
		}
		if !done {
			w.PushReinit(loop)
		}
	}
	s.w.PushReinit(loop)
}

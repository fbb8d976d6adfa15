package serial

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/solidframe/solidframe/internal/protocol"
)

// Deserializer parses the wire format produced by Serializer. Like
// Serializer, it is built directly on the existing restartable frame
// engine -- protocol.Reader -- rather than re-implementing one (see
// DESIGN.md).
type Deserializer struct {
	r      *protocol.Reader
	types  *TypeIDMap
	limits Limits
}

// NewDeserializer constructs a Deserializer that parses values out of fed
// bytes, resolving polymorphic pointers against types and enforcing
// limits on variable-length values.
func NewDeserializer(types *TypeIDMap, limits Limits) *Deserializer {
	return &Deserializer{
		r:      protocol.NewReader(0),
		types:  types,
		limits: limits,
	}
}

// Feed appends newly-arrived bytes to the Deserializer's internal buffer.
func (d *Deserializer) Feed(data []byte) {
	d.r.Feed(data)
}

// Run drives the underlying reader until it blocks, fails, or drains its
// queued work.
func (d *Deserializer) Run() Outcome {
	return d.r.Run()
}

// Err returns the error that caused the last Failure outcome, if any.
func (d *Deserializer) Err() error {
	return d.r.Err()
}

// Empty reports whether there is no queued parse work left.
func (d *Deserializer) Empty() bool {
	return d.r.Empty()
}

// PushUint32 queues a parse of a fixed-width little-endian uint32.
func (d *Deserializer) PushUint32(dst *uint32) {
	buf := make([]byte, 4)
	d.r.PushScanAtom(buf)
	d.r.PushReinit(func(r *protocol.Reader) {
		*dst = binary.LittleEndian.Uint32(buf)
	})
}

// PushUint64 queues a parse of a fixed-width little-endian uint64.
func (d *Deserializer) PushUint64(dst *uint64) {
	buf := make([]byte, 8)
	d.r.PushScanAtom(buf)
	d.r.PushReinit(func(r *protocol.Reader) {
		*dst = binary.LittleEndian.Uint64(buf)
	})
}

// PushBool queues a parse of a single-byte boolean.
func (d *Deserializer) PushBool(dst *bool) {
	var c byte
	d.r.PushScanChar(&c)
	d.r.PushReinit(func(r *protocol.Reader) {
		*dst = c != 0
	})
}

// pushScanCross queues a parse of one cross-encoded integer into dst,
// handling the variable total length by first reading the leading byte
// and then, if needed, the remaining bytes it implies.
func (d *Deserializer) pushScanCross(dst *uint64) {
	var first byte
	d.r.PushScanChar(&first)
	d.r.PushReinit(func(r *protocol.Reader) {
		total := crossTotalLen(first)
		if total == 0 {
			r.PushFail(fmt.Errorf(
				"serial: invalid cross-encoding leading byte 0x%02x",
				first,
			))
			return
		}
		if total == 1 {
			*dst = decodeCross([]byte{first})
			return
		}

		rest := make([]byte, total-1)
		r.PushScanAtom(rest)
		r.PushReinit(func(r *protocol.Reader) {
			full := append([]byte{first}, rest...)
			*dst = decodeCross(full)
		})
	})
}

// PushLen queues a parse of a bare cross-encoded length or count prefix,
// the building block every container parse uses ahead of its elements.
func (d *Deserializer) PushLen(dst *uint64) {
	d.pushScanCross(dst)
}

// PushString queues a parse of a cross-encoded length prefix followed by
// that many raw bytes, rejecting lengths over limits.MaxStringLen.
func (d *Deserializer) PushString(dst *string) {
	var n uint64
	d.pushScanCross(&n)
	d.r.PushReinit(func(r *protocol.Reader) {
		if d.limits.MaxStringLen > 0 && int(n) > d.limits.MaxStringLen {
			r.PushFail(fmt.Errorf(
				"serial: string length %d exceeds limit %d",
				n, d.limits.MaxStringLen,
			))
			return
		}

		buf := make([]byte, n)
		r.PushScanAtom(buf)
		r.PushReinit(func(r *protocol.Reader) {
			*dst = string(buf)
		})
	})
}

// PushUint32Slice queues a parse of a cross-encoded element count
// followed by that many fixed-width uint32 elements, rejecting counts
// over limits.MaxContainerLen.
func (d *Deserializer) PushUint32Slice(dst *[]uint32) {
	var n uint64
	d.pushScanCross(&n)
	d.r.PushReinit(func(r *protocol.Reader) {
		if d.limits.MaxContainerLen > 0 && int(n) > d.limits.MaxContainerLen {
			r.PushFail(fmt.Errorf(
				"serial: container length %d exceeds limit %d",
				n, d.limits.MaxContainerLen,
			))
			return
		}

		vals := make([]uint32, n)
		for i := range vals {
			d.PushUint32(&vals[i])
		}
		r.PushReinit(func(r *protocol.Reader) {
			*dst = vals
		})
	})
}

// PushBoolSlice queues a parse of a cross-encoded element count followed
// by the elements bit-packed 8 per byte.
func (d *Deserializer) PushBoolSlice(dst *[]bool) {
	var n uint64
	d.pushScanCross(&n)
	d.r.PushReinit(func(r *protocol.Reader) {
		if d.limits.MaxContainerLen > 0 && int(n) > d.limits.MaxContainerLen {
			r.PushFail(fmt.Errorf(
				"serial: container length %d exceeds limit %d",
				n, d.limits.MaxContainerLen,
			))
			return
		}

		packed := make([]byte, (n+7)/8)
		r.PushScanAtom(packed)
		r.PushReinit(func(r *protocol.Reader) {
			vals := make([]bool, n)
			for i := range vals {
				vals[i] = packed[i/8]&(1<<uint(i%8)) != 0
			}
			*dst = vals
		})
	})
}

// PushPointer queues a parse of a polymorphic value: the (protocol_id,
// type_id) pair, followed by a dispatch to the registered type's load
// callback. dst receives the resulting interface{} once the load
// callback completes.
func (d *Deserializer) PushPointer(dst *interface{}) {
	var protoID, typeID byte
	d.r.PushScanChar(&protoID)
	d.r.PushScanChar(&typeID)
	d.r.PushReinit(func(r *protocol.Reader) {
		key := TypeKey{ProtocolID: protoID, TypeID: typeID}
		e, err := d.types.lookupByKey(key)
		if err != nil {
			r.PushFail(err)
			return
		}

		d.PushCall(func(d *Deserializer, stage int) (bool, error) {
			v, err := e.load(d)
			if err != nil {
				return false, err
			}
			*dst = v
			return true, nil
		})
	})
}

// PushPointerSlice queues a parse of a cross-encoded element count
// followed by that many polymorphic pointers, the mirror of Serializer's
// PushPointerSlice. Each element is resolved one at a time, in order, so
// that results contains them in wire order once the parse completes.
func (d *Deserializer) PushPointerSlice(dst *[]interface{}) {
	var n uint64
	d.PushLen(&n)
	d.r.PushReinit(func(r *protocol.Reader) {
		if d.limits.MaxContainerLen > 0 && int(n) > d.limits.MaxContainerLen {
			r.PushFail(fmt.Errorf(
				"serial: container length %d exceeds limit %d",
				n, d.limits.MaxContainerLen,
			))
			return
		}

		results := make([]interface{}, 0, n)
		d.PushCall(func(d *Deserializer, stage int) (bool, error) {
			if uint64(stage) >= n {
				*dst = results
				return true, nil
			}
			var v interface{}
			d.PushPointer(&v)
			d.PushCall(func(d *Deserializer, _ int) (bool, error) {
				results = append(results, v)
				return true, nil
			})
			return false, nil
		})
	})
}

// PushStream queues a parse of a u64 size header followed by size bytes,
// written to w in a single call once all size bytes have been parsed.
func (d *Deserializer) PushStream(w io.Writer) {
	var size uint64
	d.PushUint64(&size)
	d.r.PushReinit(func(r *protocol.Reader) {
		if d.limits.MaxStreamLen > 0 && int64(size) > d.limits.MaxStreamLen {
			r.PushFail(fmt.Errorf(
				"serial: stream length %d exceeds limit %d",
				size, d.limits.MaxStreamLen,
			))
			return
		}

		buf := make([]byte, size)
		r.PushScanAtom(buf)
		r.PushReinit(func(r *protocol.Reader) {
			if _, err := w.Write(buf); err != nil {
				r.PushFail(fmt.Errorf("serial: stream write failed: %w", err))
			}
		})
	})
}

// DeserializeStageFunc is a single phase of a re-entrant, multi-step
// deserialization performed via PushCall, the Deserializer's mirror of
// Serializer's SerializeStageFunc (spec 4.4's pushCall re-entrancy).
type DeserializeStageFunc func(d *Deserializer, stage int) (done bool, err error)

// PushCall queues a re-entrant callback that may itself push further
// frames and runs again, with an incrementing stage counter, until it
// reports done or an error.
func (d *Deserializer) PushCall(fn DeserializeStageFunc) {
	stage := 0
	var loop func(r *protocol.Reader)
	loop = func(r *protocol.Reader) {
		done, err := fn(d, stage)
		stage++
		if err != nil {
			r.PushFail(err)
			return
		}
		if !done {
			r.PushReinit(loop)
		}
	}
	d.r.PushReinit(loop)
}

package protocol

import "fmt"

// rframe is one entry on the Reader's stack, the parser-side mirror of the
// Writer's frame.
type rframe interface {
	run(r *Reader) Outcome
}

// Reader is the symmetric parser counterpart to Writer: a stack-of-frames
// state machine that consumes bytes as they arrive and produces parsed
// values incrementally. The same five Outcome codes apply.
type Reader struct {
	buf  []byte
	rpos int
	wpos int

	stack []rframe

	err error
}

// NewReader constructs an empty Reader with the given initial capacity.
func NewReader(initialCapacity int) *Reader {
	if initialCapacity <= 0 {
		initialCapacity = defaultInitialCapacity
	}
	return &Reader{buf: make([]byte, 0, initialCapacity)}
}

// Err returns the error that caused the last Failure outcome, if any.
func (r *Reader) Err() error {
	return r.err
}

// Pending reports how many unconsumed bytes are buffered.
func (r *Reader) Pending() int {
	return r.wpos - r.rpos
}

// Empty reports whether the frame stack is empty.
func (r *Reader) Empty() bool {
	return len(r.stack) == 0
}

// Feed appends newly-arrived bytes (e.g. from a socket recv) to the
// Reader's internal buffer, compacting consumed bytes out of the way and
// growing the buffer if necessary.
func (r *Reader) Feed(data []byte) {
	if r.rpos > 0 {
		n := copy(r.buf[0:], r.buf[r.rpos:r.wpos])
		r.wpos = n
		r.rpos = 0
	}

	needed := len(data)
	if cap(r.buf)-r.wpos < needed {
		newCap := (r.wpos + needed) * 2
		newBuf := make([]byte, r.wpos, newCap)
		copy(newBuf, r.buf[:r.wpos])
		r.buf = newBuf
	}

	r.buf = r.buf[:r.wpos+needed]
	copy(r.buf[r.wpos:], data)
	r.wpos += needed
}

func (r *Reader) push(f rframe) {
	r.stack = append(r.stack, f)
}

// Run drives the frame stack exactly like Writer.Run: front to back, in
// push order.
func (r *Reader) Run() Outcome {
	for len(r.stack) > 0 {
		f := r.stack[0]

		switch o := f.run(r); o {
		case Success:
			if len(r.stack) > 0 && r.stack[0] == f {
				r.stack = r.stack[1:]
			}
		case Continue:
		default:
			return o
		}
	}

	return Success
}

// charScanFrame implements scanChar: read exactly one byte.
type charScanFrame struct {
	dst *byte
}

func (f *charScanFrame) run(r *Reader) Outcome {
	if r.wpos-r.rpos < 1 {
		return Wait
	}
	*f.dst = r.buf[r.rpos]
	r.rpos++
	return Success
}

// PushScanChar pushes a frame that parses exactly one byte into dst.
func (r *Reader) PushScanChar(dst *byte) {
	r.push(&charScanFrame{dst: dst})
}

// atomScanFrame implements scanAtom: read exactly len(dst) bytes.
type atomScanFrame struct {
	dst       []byte
	consumed  int
}

func (f *atomScanFrame) run(r *Reader) Outcome {
	avail := r.wpos - r.rpos
	need := len(f.dst) - f.consumed
	if avail <= 0 {
		return Wait
	}

	n := need
	if avail < n {
		n = avail
	}

	copy(f.dst[f.consumed:], r.buf[r.rpos:r.rpos+n])
	r.rpos += n
	f.consumed += n

	if f.consumed < len(f.dst) {
		return Wait
	}
	return Success
}

// PushScanAtom pushes a frame that parses exactly len(dst) bytes into dst.
func (r *Reader) PushScanAtom(dst []byte) {
	r.push(&atomScanFrame{dst: dst})
}

// PushScanLiteralBlock is an alias for PushScanAtom sized to n, matching the
// original's scanLiteralBlock(n) naming for large opaque payloads.
func (r *Reader) PushScanLiteralBlock(dst []byte, n int) {
	r.push(&atomScanFrame{dst: dst[:n]})
}

// crlfScanFrame implements scanCRLF: consume a literal "\r\n".
type crlfScanFrame struct {
	consumed int
}

func (f *crlfScanFrame) run(r *Reader) Outcome {
	want := [2]byte{'\r', '\n'}
	for f.consumed < 2 {
		if r.wpos-r.rpos < 1 {
			return Wait
		}
		got := r.buf[r.rpos]
		if got != want[f.consumed] {
			r.err = fmt.Errorf(
				"protocol: expected CRLF, got %q at offset %d",
				got, f.consumed,
			)
			return Failure
		}
		r.rpos++
		f.consumed++
	}
	return Success
}

// PushScanCRLF pushes a frame that consumes a literal "\r\n", failing the
// parse if the bytes present don't match.
func (r *Reader) PushScanCRLF() {
	r.push(&crlfScanFrame{})
}

// quotedStringScanFrame implements scanQuotedString: the current position
// must be the opening quote byte; scans through the matching closing quote
// (no escape processing, matching the scope of the original's base
// protocol layer) and reports the content between the quotes.
type quotedStringScanFrame struct {
	quote   byte
	dst     *string
	started bool
	content []byte
}

func (f *quotedStringScanFrame) run(r *Reader) Outcome {
	if !f.started {
		if r.wpos-r.rpos < 1 {
			return Wait
		}
		if r.buf[r.rpos] != f.quote {
			r.err = fmt.Errorf(
				"protocol: expected opening quote %q, got %q",
				f.quote, r.buf[r.rpos],
			)
			return Failure
		}
		r.rpos++
		f.started = true
	}

	for r.rpos < r.wpos {
		c := r.buf[r.rpos]
		r.rpos++
		if c == f.quote {
			*f.dst = string(f.content)
			return Success
		}
		f.content = append(f.content, c)
	}

	return Wait
}

// PushScanQuotedString pushes a frame that parses a quote-delimited string
// starting at the current position into dst.
func (r *Reader) PushScanQuotedString(quote byte, dst *string) {
	r.push(&quotedStringScanFrame{quote: quote, dst: dst})
}

// failScanFrame lets caller-side re-entrant code abort the parse with an
// application error, since reinitScanFrame itself always reports Success.
type failScanFrame struct {
	err error
}

func (f *failScanFrame) run(r *Reader) Outcome {
	r.err = f.err
	return Failure
}

// PushFail pushes a frame that immediately fails the parse with err.
func (r *Reader) PushFail(err error) {
	r.push(&failScanFrame{err: err})
}

// reinitScanFrame is the Reader's mirror of Writer's reinitFrame.
type reinitScanFrame struct {
	fn func(r *Reader)
}

func (f *reinitScanFrame) run(r *Reader) Outcome {
	rest := r.stack[1:]
	r.stack = nil
	f.fn(r)
	r.stack = append(r.stack, rest...)
	return Success
}

// PushReinit pushes a frame that calls fn (which may push further frames)
// and then succeeds.
func (r *Reader) PushReinit(fn func(r *Reader)) {
	r.push(&reinitScanFrame{fn: fn})
}

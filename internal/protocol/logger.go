package protocol

// Logger is an optional pluggable sink mirroring every non-silent emission
// from a Writer, for protocol-level transcript logging. It is otherwise
// opaque to the Writer.
type Logger interface {
	// WriteChar records a single emitted byte.
	WriteChar(c byte)

	// WriteAtom records a contiguous emitted byte range.
	WriteAtom(data []byte)

	// WriteFlush records that buffered bytes were handed to the
	// underlying transport.
	WriteFlush()
}

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReaderScanAtomAcrossFeeds verifies that ScanAtom correctly resumes
// across multiple Feed calls when the input arrives in fragments.
func TestReaderScanAtomAcrossFeeds(t *testing.T) {
	t.Parallel()

	r := NewReader(0)
	dst := make([]byte, 5)
	r.PushScanAtom(dst)

	r.Feed([]byte("he"))
	o := r.Run()
	require.Equal(t, Wait, o)

	r.Feed([]byte("llo"))
	o = r.Run()
	require.Equal(t, Success, o)
	require.Equal(t, "hello", string(dst))
}

// TestReaderScanCRLFMismatch verifies that a malformed line terminator
// fails the parse rather than silently continuing.
func TestReaderScanCRLFMismatch(t *testing.T) {
	t.Parallel()

	r := NewReader(0)
	r.PushScanCRLF()
	r.Feed([]byte("\r\x00"))

	o := r.Run()
	require.Equal(t, Failure, o)
	require.Error(t, r.Err())
}

// TestReaderScanQuotedString verifies parsing of a quote-delimited string.
func TestReaderScanQuotedString(t *testing.T) {
	t.Parallel()

	r := NewReader(0)
	var dst string
	r.PushScanQuotedString('"', &dst)
	r.Feed([]byte(`"hello world"`))

	o := r.Run()
	require.Equal(t, Success, o)
	require.Equal(t, "hello world", dst)
}

// TestReaderSequentialFrames verifies that multiple pushed frames run in
// the order they were pushed.
func TestReaderSequentialFrames(t *testing.T) {
	t.Parallel()

	r := NewReader(0)
	var first byte
	second := make([]byte, 3)

	r.PushScanChar(&first)
	r.PushScanAtom(second)
	r.Feed([]byte("Xabc"))

	o := r.Run()
	require.Equal(t, Success, o)
	require.Equal(t, byte('X'), first)
	require.Equal(t, "abc", string(second))
}

// TestReaderReinitInjectsFollowOnFrames mirrors the Writer Reinit test: the
// frames pushed by a Reinit callback must run immediately after it.
func TestReaderReinitInjectsFollowOnFrames(t *testing.T) {
	t.Parallel()

	r := NewReader(0)
	var c byte
	order := make([]string, 0, 2)

	r.PushReinit(func(r *Reader) {
		order = append(order, "reinit")
		r.PushScanChar(&c)
	})
	r.Feed([]byte("Z"))

	o := r.Run()
	require.Equal(t, Success, o)
	require.Equal(t, byte('Z'), c)
	require.Equal(t, []string{"reinit"}, order)
}

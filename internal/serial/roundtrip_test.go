package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// scriptedSender mirrors the scripted send helper used in the protocol
// package's writer tests, feeding a fixed sequence of partial writes into
// a Serializer to exercise the restart path under fragmentation.
func scriptedSender(chunks ...int) (SendFunc, *[]byte) {
	out := make([]byte, 0, 256)
	idx := 0
	send := func(p []byte) (int, error) {
		n := len(p)
		if idx < len(chunks) && chunks[idx] < n {
			n = chunks[idx]
		}
		idx++
		out = append(out, p[:n]...)
		return n, nil
	}
	return send, &out
}

// runSerializerToCompletion drains s, feeding sent bytes to accumulate,
// looping past Wait outcomes (the send func here never truly blocks, it
// just returns short writes).
func runSerializerToCompletion(t *testing.T, s *Serializer) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		o := s.Run()
		if o == Success {
			return
		}
		require.NotEqual(t, Failure, o, "serializer failed: %v", s.Err())
	}
	t.Fatal("serializer did not complete within iteration budget")
}

func runDeserializerToCompletion(t *testing.T, d *Deserializer, feed [][]byte) {
	t.Helper()
	i := 0
	for {
		o := d.Run()
		if o == Success {
			return
		}
		require.NotEqual(t, Failure, o, "deserializer failed: %v", d.Err())
		require.Equal(t, Wait, o)
		require.Less(t, i, len(feed), "ran out of feed data while still waiting")
		d.Feed(feed[i])
		i++
	}
}

// TestSerializeS2Primitives reproduces spec S2 byte-for-byte: a fixed-width
// uint32, a cross-length-prefixed string, and a cross-length-prefixed
// uint32 slice.
func TestSerializeS2Primitives(t *testing.T) {
	t.Parallel()

	send, out := scriptedSender()
	s, err := NewSerializer(send, nil)
	require.NoError(t, err)

	s.PushUint32(0x01020304)
	s.PushString("hi")
	s.PushUint32Slice([]uint32{1, 2})

	runSerializerToCompletion(t, s)

	want := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x02, 0x68, 0x69,
		0x02, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
	}
	require.Equal(t, want, *out)
}

// TestDeserializeS2Primitives parses the exact S2 byte vector back into
// the original struct.
func TestDeserializeS2Primitives(t *testing.T) {
	t.Parallel()

	wire := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x02, 0x68, 0x69,
		0x02, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
	}

	d := NewDeserializer(nil, DefaultLimits())
	var u32 uint32
	var str string
	var vec []uint32

	d.PushUint32(&u32)
	d.PushString(&str)
	d.PushUint32Slice(&vec)

	d.Feed(wire)
	runDeserializerToCompletion(t, d, nil)

	require.Equal(t, uint32(0x01020304), u32)
	require.Equal(t, "hi", str)
	require.Equal(t, []uint32{1, 2}, vec)
}

// TestDeserializeS2FragmentedFeed feeds the S2 vector one byte at a time,
// exercising the restart path across every possible split point (spec's
// round-trip invariant: "restart-safe at any split point of the stream").
func TestDeserializeS2FragmentedFeed(t *testing.T) {
	t.Parallel()

	wire := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x02, 0x68, 0x69,
		0x02, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
	}

	d := NewDeserializer(nil, DefaultLimits())
	var u32 uint32
	var str string
	var vec []uint32

	d.PushUint32(&u32)
	d.PushString(&str)
	d.PushUint32Slice(&vec)

	feed := make([][]byte, len(wire))
	for i, b := range wire {
		feed[i] = []byte{b}
	}

	runDeserializerToCompletion(t, d, feed)

	require.Equal(t, uint32(0x01020304), u32)
	require.Equal(t, "hi", str)
	require.Equal(t, []uint32{1, 2}, vec)
}

// TestSerializeDeserializeFragmentedSend round-trips a string through a
// Serializer whose send func only accepts a handful of bytes at a time,
// feeding the resulting fragments into a Deserializer.
func TestSerializeDeserializeFragmentedSend(t *testing.T) {
	t.Parallel()

	send, out := scriptedSender(3, 2, 1, 100)
	s, err := NewSerializer(send, nil)
	require.NoError(t, err)

	s.PushString("hello, solidframe")
	runSerializerToCompletion(t, s)

	d := NewDeserializer(nil, DefaultLimits())
	var got string
	d.PushString(&got)
	d.Feed(*out)

	o := d.Run()
	require.Equal(t, Success, o)
	require.Equal(t, "hello, solidframe", got)
}

// TestCrossEncodingRoundTrip property-tests the cross encoding scheme
// across its full value range, including every boundary between width
// classes.
func TestCrossEncodingRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Uint64().Draw(t, "v")

		enc := encodeCross(v)
		require.Equal(t, crossLen(v), len(enc))
		require.Equal(t, len(enc), crossTotalLen(enc[0]))
		require.Equal(t, v, decodeCross(enc))
	})
}

// TestCrossEncodingBoundaries pins down the exact byte width at each
// class boundary.
func TestCrossEncodingBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{cross1ByteMax, 1},
		{cross1ByteMax + 1, 2},
		{cross2ByteMax, 2},
		{cross2ByteMax + 1, 3},
		{cross3ByteMax, 3},
		{cross3ByteMax + 1, 4},
		{cross4ByteMax, 4},
		{cross4ByteMax + 1, 5},
		{0xFFFFFFFF, 5},
		{0x100000000, 9},
		{^uint64(0), 9},
	}

	for _, c := range cases {
		enc := encodeCross(c.v)
		require.Len(t, enc, c.want, "value %d", c.v)
		require.Equal(t, c.v, decodeCross(enc), "value %d", c.v)
	}
}

// TestUint32SliceRoundTrip property-tests containers of varying length.
func TestUint32SliceRoundTrip(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		vals := rapid.SliceOf(rapid.Uint32()).Draw(t, "vals")

		send, out := scriptedSender()
		s, err := NewSerializer(send, nil)
		require.NoError(t, err)
		s.PushUint32Slice(vals)
		runSerializerToCompletionT(t, s)

		d := NewDeserializer(nil, DefaultLimits())
		var got []uint32
		d.PushUint32Slice(&got)
		d.Feed(*out)
		o := d.Run()
		require.Equal(t, Success, o)

		if len(vals) == 0 {
			require.Empty(t, got)
		} else {
			require.Equal(t, vals, got)
		}
	})
}

// runSerializerToCompletionT is the rapid.T variant of
// runSerializerToCompletion (rapid properties run under *rapid.T, not
// *testing.T).
func runSerializerToCompletionT(t *rapid.T, s *Serializer) {
	for i := 0; i < 1000; i++ {
		o := s.Run()
		if o == Success {
			return
		}
		if o == Failure {
			t.Fatalf("serializer failed: %v", s.Err())
		}
	}
	t.Fatal("serializer did not complete within iteration budget")
}

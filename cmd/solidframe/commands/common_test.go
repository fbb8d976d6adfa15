package commands

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = orig

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)

	return buf.String()
}

func TestPrintStructText(t *testing.T) {
	outputFormat = "text"
	s, err := structpb.NewStruct(map[string]interface{}{"load": float64(3)})
	require.NoError(t, err)

	out := captureStdout(t, func() {
		require.NoError(t, printStruct(s))
	})

	require.Contains(t, out, "\"load\": 3")
}

func TestPrintStructJSON(t *testing.T) {
	outputFormat = "json"
	defer func() { outputFormat = "text" }()

	s, err := structpb.NewStruct(map[string]interface{}{"posted": true})
	require.NoError(t, err)

	out := captureStdout(t, func() {
		require.NoError(t, printStruct(s))
	})

	require.Contains(t, out, "posted")
	require.Contains(t, out, "true")
}

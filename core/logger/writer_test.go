package logger

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOut(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, nil, &b}, 0)

	require.NoError(t, w.Write([]byte("one\n")))
	require.NoError(t, w.Write(nil))
	require.NoError(t, w.Write([]byte("two\n")))
	require.NoError(t, w.Flush())

	assert.Equal(t, "one\ntwo\n", a.String())
	assert.Equal(t, "one\ntwo\n", b.String())
	lines, _ := w.Stats()
	assert.Equal(t, uint64(2), lines)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Flush(), "flush after close does not hang")
}

func TestAsyncWriterReportsSinkFailure(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingWriter{}}, 16)
	require.NoError(t, w.Write([]byte("lost\n")))
	err := w.Close()
	require.Error(t, err)
	assert.Error(t, w.Write([]byte("after\n")))
}

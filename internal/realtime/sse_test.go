package realtime

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComment(&buf, "connected"))
	require.NoError(t, WriteFrame(&buf, Frame{Event: "record", Data: []byte(`{"a":1}`)}))
	require.NoError(t, WriteComment(&buf, "ping"))
	require.NoError(t, WriteFrame(&buf, Frame{Data: []byte("two\nlines")}))

	r := NewFrameReader(&buf)
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "record", first.Event)
	assert.Equal(t, `{"a":1}`, string(first.Data))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Empty(t, second.Event)
	assert.Equal(t, "two\nlines", string(second.Data))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

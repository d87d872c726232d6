package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	orig := NewBytes([]byte("AAAA"))
	c := orig.Clone()
	c.Bytes()[0] = 'B'

	assert.Equal(t, "AAAA", string(orig.Bytes()))
	assert.Equal(t, "BAAA", string(c.Bytes()))
}

func TestNewBytesCopies(t *testing.T) {
	src := []byte("xy")
	b := NewBytes(src)
	src[0] = 'z'
	assert.Equal(t, "xy", string(b.Bytes()))
}

func TestBytesCodec(t *testing.T) {
	var codec BytesCodec
	data, err := codec.Encode(NewBytes([]byte{1, 2, 3}))
	require.NoError(t, err)

	in, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, in.Bytes())

	_, err = codec.Encode(nil)
	assert.Error(t, err)
}

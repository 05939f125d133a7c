package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdm-protocol/rdm-go/pkg/frame"
	"github.com/rdm-protocol/rdm-go/pkg/param"
	"github.com/rdm-protocol/rdm-go/pkg/uid"
)

func testFrame(t *testing.T) []byte {
	t.Helper()
	data, err := frame.Encode(&frame.Header{
		DestUID: uid.New(0x05e0, 0x00000001),
		SrcUID:  uid.New(0x6574, 0x00000002),
		CC:      param.CCGetCommand,
		PID:     param.PIDDeviceInfo,
	}, nil)
	require.NoError(t, err)
	return data
}

func collect(out chan []byte) [][]byte {
	var pkts [][]byte
	for {
		select {
		case p := <-out:
			pkts = append(pkts, p)
		default:
			return pkts
		}
	}
}

func TestAssemblerWholeFrame(t *testing.T) {
	out := make(chan []byte, 4)
	asm := newAssembler(out)

	data := testFrame(t)
	asm.Write(data)

	pkts := collect(out)
	require.Len(t, pkts, 1)
	assert.Equal(t, data, pkts[0])
}

func TestAssemblerByteAtATime(t *testing.T) {
	out := make(chan []byte, 4)
	asm := newAssembler(out)

	data := testFrame(t)
	for _, b := range data {
		asm.Write([]byte{b})
	}

	pkts := collect(out)
	require.Len(t, pkts, 1)
	assert.Equal(t, data, pkts[0])
}

func TestAssemblerBackToBackFrames(t *testing.T) {
	out := make(chan []byte, 4)
	asm := newAssembler(out)

	data := testFrame(t)
	joined := append(append([]byte{}, data...), data...)
	asm.Write(joined)

	pkts := collect(out)
	require.Len(t, pkts, 2)
	assert.Equal(t, data, pkts[0])
	assert.Equal(t, data, pkts[1])
}

func TestAssemblerDiscResponse(t *testing.T) {
	out := make(chan []byte, 4)
	asm := newAssembler(out)

	data := frame.EncodeDiscResponse(uid.New(0x05e0, 0x12345678))
	asm.Write(data[:5])
	assert.Empty(t, collect(out))

	asm.Write(data[5:])
	pkts := collect(out)
	require.Len(t, pkts, 1)
	assert.Equal(t, data, pkts[0])
}

func TestAssemblerDiscResponseShortPreamble(t *testing.T) {
	out := make(chan []byte, 4)
	asm := newAssembler(out)

	// A receiver that missed every preamble byte still sees the
	// delimiter first.
	data := frame.EncodeDiscResponse(uid.New(0x05e0, 0x00000007))
	asm.Write(data[frame.MaxPreambleLen:])

	pkts := collect(out)
	require.Len(t, pkts, 1)
}

func TestAssemblerFlushOnQuietLine(t *testing.T) {
	out := make(chan []byte, 4)
	asm := newAssembler(out)

	// Garbage with no recognizable frame sits until the quiet-line
	// flush surfaces it.
	asm.Write([]byte{0x01, 0x02, 0x03})
	assert.Empty(t, collect(out))

	asm.Flush()
	pkts := collect(out)
	require.Len(t, pkts, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, pkts[0])
}

func TestCompleteFrameLenTruncated(t *testing.T) {
	data := testFrame(t)
	for i := 1; i < len(data); i++ {
		assert.Zero(t, completeFrameLen(data[:i]), "length %d", i)
	}
	assert.Equal(t, len(data), completeFrameLen(data))
}

package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerialParams_Defaults(t *testing.T) {
	p, err := parseSerialParams("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaudRate, p.baudRate)
	assert.True(t, p.rtscts, "hardware flow control defaults to enabled")
}

func TestParseSerialParams_BaudRate(t *testing.T) {
	p, err := parseSerialParams("b9600")
	require.NoError(t, err)
	assert.Equal(t, 9600, p.baudRate)

	// Uppercase prefix is accepted.
	p, err = parseSerialParams("B230400")
	require.NoError(t, err)
	assert.Equal(t, 230400, p.baudRate)
}

func TestParseSerialParams_UnsupportedBaudRate(t *testing.T) {
	_, err := parseSerialParams("b999999999")
	require.ErrorIs(t, err, ErrBadBaudRate)
	// The error enumerates the valid alternatives.
	assert.Contains(t, err.Error(), "9600")
	assert.Contains(t, err.Error(), "460800")
}

func TestParseSerialParams_FlowControl(t *testing.T) {
	p, err := parseSerialParams("crtscts")
	require.NoError(t, err)
	assert.True(t, p.rtscts)

	p, err = parseSerialParams("+crtscts")
	require.NoError(t, err)
	assert.True(t, p.rtscts)

	p, err = parseSerialParams("-crtscts")
	require.NoError(t, err)
	assert.False(t, p.rtscts)
}

func TestParseSerialParams_Combined(t *testing.T) {
	p, err := parseSerialParams("b57600,-crtscts")
	require.NoError(t, err)
	assert.Equal(t, 57600, p.baudRate)
	assert.False(t, p.rtscts)
}

func TestParseSerialParams_UnknownToken(t *testing.T) {
	_, err := parseSerialParams("b115200,parity")
	assert.ErrorIs(t, err, ErrUnknownParam)

	_, err = parseSerialParams("bfast")
	assert.ErrorIs(t, err, ErrUnknownParam)
}

func TestSplitSerialDescriptor(t *testing.T) {
	path, params := splitSerialDescriptor("/dev/ttyACM0,b115200,+crtscts")
	assert.Equal(t, "/dev/ttyACM0", path)
	assert.Equal(t, "b115200,+crtscts", params)

	path, params = splitSerialDescriptor("/dev/ttyUSB0")
	assert.Equal(t, "/dev/ttyUSB0", path)
	assert.Empty(t, params)
}

func TestTCPAddr(t *testing.T) {
	assert.Equal(t, "localhost:4444", tcpAddr("localhost:4444", DefaultTCPPort))
	assert.Equal(t, "localhost:8888", tcpAddr("localhost", DefaultTCPPort))
	assert.Equal(t, "10.0.0.7:8888", tcpAddr("10.0.0.7", DefaultTCPPort))
}

package targets

import (
	"testing"

	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, h Harness, data string) (executor.ExitKind, *coverage.Map) {
	t.Helper()
	cov := coverage.NewMap(0)
	exit, err := executor.NewInProcess(h, cov, nil).Run(input.NewBytes([]byte(data)))
	require.NoError(t, err)
	return exit, cov
}

func TestMagicProgress(t *testing.T) {
	_, none := run(t, Magic, "xxxxx")
	_, two := run(t, Magic, "FUxxx")
	assert.Equal(t, 1, none.Count())
	assert.Equal(t, 3, two.Count())

	exit, _ := run(t, Magic, "FUZZ!tail")
	assert.Equal(t, executor.Crash, exit)
}

func TestTLV(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want executor.ExitKind
	}{
		{"empty", nil, executor.Ok},
		{"string", []byte{tlvString, 2, 'h', 'i', tlvEnd, 0}, executor.Ok},
		{"short string", []byte{tlvString, 9, 'h'}, executor.Ok},
		{"nested", []byte{tlvNested, 4, tlvNumber, 2, 1, 2}, executor.Ok},
		{"nested overrun", []byte{tlvNested, 200, tlvNumber}, executor.Crash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit, _ := run(t, TLV, string(tt.data))
			assert.Equal(t, tt.want, exit)
		})
	}
}

func TestLookup(t *testing.T) {
	h, err := Lookup("magic")
	require.NoError(t, err)
	assert.NotNil(t, h)

	_, err = Lookup("nope")
	assert.ErrorContains(t, err, "magic")
	assert.Equal(t, []string{"magic", "tlv"}, Names())
}

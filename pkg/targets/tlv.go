package targets

import (
	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/input"
)

const (
	tlvEnd    = 0x00
	tlvString = 0x01
	tlvNumber = 0x02
	tlvNested = 0x03
)

// TLV parses records of one type byte, one length byte and a value. Nested
// records recurse. The nested branch trusts the declared length, so a nested
// record claiming more bytes than remain indexes out of range.
func TLV(in *input.Bytes, cov *coverage.Map) executor.ExitKind {
	parseTLV(in.Bytes(), cov, 0)
	return executor.Ok
}

func parseTLV(data []byte, cov *coverage.Map, depth uint32) {
	prev := depth << 8
	for len(data) >= 2 {
		typ, n := data[0], int(data[1])
		cov.Edge(prev, uint32(typ)+depth<<8)
		prev = uint32(typ) + depth<<8
		data = data[2:]

		switch typ {
		case tlvEnd:
			return
		case tlvString:
			if n > len(data) {
				return
			}
			cov.Hit(0x1000 + uint32(n&0xf))
		case tlvNumber:
			if n > 8 || n > len(data) {
				return
			}
			cov.Hit(0x2000 + uint32(n))
		case tlvNested:
			if depth > 3 {
				return
			}
			parseTLV(data[:n], cov, depth+1)
		default:
			return
		}
		if n > len(data) {
			return
		}
		data = data[n:]
	}
}

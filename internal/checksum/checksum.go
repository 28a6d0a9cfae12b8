// internal/checksum/checksum.go
package checksum

import "github.com/sigurn/crc16"

// Polynomial is the reversed (LSB-first) polynomial the unit firmware uses.
// It MUST NOT change: deployed firmware reproduces the same value.
const Polynomial uint16 = 0x6C49

// params describe the same register in the Rocksoft model:
// normal-form poly is the bit-reverse of Polynomial, reflected in and out,
// zero init, no final xor.
var params = crc16.Params{
	Poly:   0x9236,
	Init:   0x0000,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Name:   "CRC-16/FIXTURE",
}

var table = crc16.MakeTable(params)

// Compute returns the 16-bit checksum of b.
// Pure function, never fails. Empty input yields 0.
func Compute(b []byte) uint16 {
	return crc16.Checksum(b, table)
}

// String computes the checksum over the UTF-8 bytes of s.
func String(s string) uint16 {
	return Compute([]byte(s))
}

// internal/driver/bose/checksum.go
package bose

// checksumMask is the 16-bit mask used in checksum calculations
const checksumMask = 0xFFFF

// calculateFrameChecksum sums every byte from BLOCK through PAYLOAD and returns
// the 16-bit two's complement. SOF, CHECKSUM and EOF are excluded.
func calculateFrameChecksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return 1 + (checksumMask ^ sum)
}

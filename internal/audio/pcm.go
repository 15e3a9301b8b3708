package audio

import "encoding/binary"

// ToInt16 converts float samples in [-1,1] to int16, clipping anything
// outside the range. dst must be at least as long as src.
func ToInt16(dst []int16, src []float32) {
	for i, s := range src {
		v := float64(s) * 32767

		// Clip to int16 range
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst[i] = int16(v)
	}
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples decodes little-endian int16 PCM. A trailing odd byte is
// ignored.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}

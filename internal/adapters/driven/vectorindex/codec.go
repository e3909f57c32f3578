package vectorindex

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// EncodeVector packs v as little-endian float32.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a little-endian float32 blob.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", domain.ErrIndexIO, len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

// CloneVector returns a copy of v so stored entries never alias caller memory.
func CloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}

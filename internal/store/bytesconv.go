package store

import (
	"encoding/binary"
	"math"
)

func putFloat32LE(dst []byte, f float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(f))
}

func float32FromLE(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}

// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"encoding/binary"
	"math"
)

// float32ToBytes and bytesToFloat32 encode embedding vectors as raw
// little-endian float32 blobs for storage in the embedding BLOB column,
// since SQLite has no native vector type.
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func bytesToFloat32(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

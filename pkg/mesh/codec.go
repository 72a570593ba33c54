package mesh

import (
	"encoding/binary"
	"fmt"
)

// Wire helpers for small control payloads.
//
// Integers travel as big-endian int64 so members on different architectures
// agree on the encoding.

const intSize = 8

// EncodeInts encodes vals as consecutive big-endian int64 values.
func EncodeInts(vals []int) []byte {
	buf := make([]byte, len(vals)*intSize)
	for i, v := range vals {
		binary.BigEndian.PutUint64(buf[i*intSize:], uint64(int64(v)))
	}
	return buf
}

// DecodeInts decodes a payload produced by EncodeInts.
func DecodeInts(buf []byte) ([]int, error) {
	if len(buf)%intSize != 0 {
		return nil, fmt.Errorf("%w: integer payload of %d bytes is not a multiple of %d",
			ErrSizeMismatch, len(buf), intSize)
	}
	vals := make([]int, len(buf)/intSize)
	for i := range vals {
		vals[i] = int(int64(binary.BigEndian.Uint64(buf[i*intSize:])))
	}
	return vals, nil
}

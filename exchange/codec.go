// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exchange

import (
	"encoding/binary"
	"math"
)

// encodeInts splits v into a 4-byte length header and an 8-byte-per-entry
// body, sent as two separate Transport messages since Transport.Receive
// requires the receiver's buffer length to match the sender's exactly.
func encodeInts(v []int) (header, body []byte) {
	header = make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(v)))
	body = make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(body[8*i:], uint64(int64(x)))
	}
	return header, body
}

func decodeIntsLen(header []byte) int {
	return int(binary.LittleEndian.Uint32(header))
}

func decodeInts(body []byte, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(int64(binary.LittleEndian.Uint64(body[8*i:])))
	}
	return out
}

// EncodeFloats and DecodeFloats are exported so m2n can reuse the same
// little-endian float wire format for its own scalar/vector control-plane
// messages instead of duplicating the codec.
func EncodeFloats(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func DecodeFloats(body []byte, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[8*i:]))
	}
	return out
}

// encodeIntMap flattens m into [k0, len(v0), v0..., k1, len(v1), v1...]
// and reuses encodeInts' length-prefixed two-message wire format, used by
// BroadcastSendLCM to serialize a per-remote-rank local communication map.
func encodeIntMap(m map[int][]int) (header, body []byte) {
	var flat []int
	for k, v := range m {
		flat = append(flat, k, len(v))
		flat = append(flat, v...)
	}
	return encodeInts(flat)
}

func decodeIntMap(body []byte, n int) map[int][]int {
	flat := decodeInts(body, n)
	out := make(map[int][]int)
	i := 0
	for i < len(flat) {
		k, l := flat[i], flat[i+1]
		out[k] = append([]int(nil), flat[i+2:i+2+l]...)
		i += 2 + l
	}
	return out
}

package index

import (
	"encoding/binary"
	"math"

	"github.com/halcyon-data/docdex/internal/domain/unit"
)

// buildHashFields flattens a projected record into the HSET field map.
// Scalar fields arrive already projected; only the embedding needs the
// binary encoding FT.SEARCH expects.
func buildHashFields(rec *unit.Record) map[string]string {
	m := make(map[string]string, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		m[k] = v
	}
	if rec.Embedding != nil {
		m[unit.FieldContentEmbedding] = vectorToBytes(rec.Embedding)
	}
	return m
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// Package matrixfile reads and writes the flat matrix file format: one
// matrix row per line, values separated by single spaces.
package matrixfile

import (
	"bytes"
	"io"
	"strconv"

	"github.com/ccollicutt/logmatrix/pkg/extract"
	"github.com/ccollicutt/logmatrix/pkg/matrix"
)

// PrecisionVerbatim keeps the source text of every value when it is known,
// and otherwise writes the shortest decimal that round-trips.
const PrecisionVerbatim = -1

// Standard precisions for the two matrix families.
const (
	DefaultTrafficPrecision   = PrecisionVerbatim
	DefaultBandwidthPrecision = 3
	MaxPrecision              = 9
)

// Serializer renders matrices with a fixed number of decimals.
type Serializer struct {
	precision int
}

// NewSerializer returns a serializer writing precision decimals per value.
// Precision is clamped to PrecisionVerbatim..MaxPrecision.
func NewSerializer(precision int) *Serializer {
	return &Serializer{precision: min(max(precision, PrecisionVerbatim), MaxPrecision)}
}

// Precision returns the configured number of decimals.
func (s *Serializer) Precision() int { return s.precision }

// Encode renders m: rows joined by "\n", values by " ", with a final newline.
func (s *Serializer) Encode(m *matrix.Dense) []byte {
	var buf bytes.Buffer
	for _, row := range m.ToRows() {
		for j, v := range row {
			if j > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(strconv.FormatFloat(v, 'f', s.precision, 64))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// EncodeTokens renders already-formatted tokens in the same layout as Encode.
func (s *Serializer) EncodeTokens(tokens [][]string) []byte {
	var buf bytes.Buffer
	for _, row := range tokens {
		for j, tok := range row {
			if j > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(tok)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// EncodeTraffic renders a traffic record. In verbatim mode the source tokens
// are written unchanged.
func (s *Serializer) EncodeTraffic(rec *extract.TrafficRecord) []byte {
	if s.precision == PrecisionVerbatim && len(rec.Tokens) > 0 {
		return s.EncodeTokens(rec.Tokens)
	}
	return s.Encode(rec.Matrix)
}

// Write renders m to w.
func (s *Serializer) Write(w io.Writer, m *matrix.Dense) error {
	_, err := w.Write(s.Encode(m))
	return err
}

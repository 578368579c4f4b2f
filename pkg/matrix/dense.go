// Package matrix provides the dense, rectangular float64 matrix that the
// extractors build and the serializer writes.
package matrix

import (
	"fmt"
	"math"
)

// Dense is a rows×cols matrix stored row-major in a single slice.
// A Dense is rectangular by construction.
type Dense struct {
	rows int
	cols int
	data []float64
}

// NewDense returns a zero-filled rows×cols matrix.
func NewDense(rows, cols int) (*Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	if rows > math.MaxInt/cols {
		return nil, fmt.Errorf("%w: %dx%d overflows", ErrBadShape, rows, cols)
	}
	return &Dense{
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols),
	}, nil
}

// NewSquare returns a zero-filled n×n matrix.
func NewSquare(n int) (*Dense, error) {
	return NewDense(n, n)
}

// FromRows copies rows into a new matrix. Every row must have the same,
// non-zero length.
func FromRows(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrBadShape)
	}
	cols := len(rows[0])
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, row 1 has %d", ErrRagged, i+1, len(row), cols)
		}
	}

	m, err := NewDense(len(rows), cols)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		copy(m.data[i*cols:(i+1)*cols], row)
	}
	return m, nil
}

// Rows returns the number of rows.
func (m *Dense) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Dense) Cols() int { return m.cols }

// IsSquare reports whether the matrix has as many rows as columns.
func (m *Dense) IsSquare() bool { return m.rows == m.cols }

// At returns the value at (i, j).
func (m *Dense) At(i, j int) (float64, error) {
	if err := m.check(i, j); err != nil {
		return 0, err
	}
	return m.data[i*m.cols+j], nil
}

// Set stores v at (i, j).
func (m *Dense) Set(i, j int, v float64) error {
	if err := m.check(i, j); err != nil {
		return err
	}
	m.data[i*m.cols+j] = v
	return nil
}

// SetSymmetric stores v at (i, j) and (j, i). The matrix must be square.
func (m *Dense) SetSymmetric(i, j int, v float64) error {
	if !m.IsSquare() {
		return fmt.Errorf("%w: %dx%d", ErrNonSquare, m.rows, m.cols)
	}
	if err := m.check(i, j); err != nil {
		return err
	}
	m.data[i*m.cols+j] = v
	m.data[j*m.cols+i] = v
	return nil
}

// ToRows returns the matrix as a fresh slice of rows.
func (m *Dense) ToRows() [][]float64 {
	out := make([][]float64, m.rows)
	for i := range out {
		out[i] = make([]float64, m.cols)
		copy(out[i], m.data[i*m.cols:(i+1)*m.cols])
	}
	return out
}

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return &Dense{rows: m.rows, cols: m.cols, data: data}
}

// IsSymmetric reports whether m is square and |m[i][j] - m[j][i]| <= eps for all i, j.
func (m *Dense) IsSymmetric(eps float64) bool {
	if !m.IsSquare() {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for j := i + 1; j < m.cols; j++ {
			if math.Abs(m.data[i*m.cols+j]-m.data[j*m.cols+i]) > eps {
				return false
			}
		}
	}
	return true
}

// EqualApprox reports whether a and b have the same shape and all values
// differ by at most eps.
func EqualApprox(a, b *Dense, eps float64) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	for k := range a.data {
		if math.Abs(a.data[k]-b.data[k]) > eps {
			return false
		}
	}
	return true
}

// NonZero returns the number of cells holding a non-zero value.
func (m *Dense) NonZero() int {
	n := 0
	for _, v := range m.data {
		if v != 0 {
			n++
		}
	}
	return n
}

func (m *Dense) check(i, j int) error {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		return fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfRange, i, j, m.rows, m.cols)
	}
	return nil
}

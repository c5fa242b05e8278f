package conf

import (
	"errors"

	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/gonum/matrix/mat64"
)

// Decoder reads many values from a tree and keeps the first error, so that a model
// constructor can read all of its parameters and check Err once.
type Decoder struct {
	t   *Tree
	err error
}

// Decoder returns a decoder over t.
func (t *Tree) Decoder() *Decoder {
	return &Decoder{t: t}
}

// Err returns the first error met, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Tree returns the underlying tree.
func (d *Decoder) Tree() *Tree {
	return d.t
}

func (d *Decoder) keep(err error) bool {
	if err != nil && d.err == nil {
		d.err = err
	}
	return err == nil
}

// Scalar reads a required number.
func (d *Decoder) Scalar(key string) float64 {
	v, err := d.t.Scalar(key)
	d.keep(err)
	return v
}

// ScalarOr reads an optional number.
func (d *Decoder) ScalarOr(key string, def float64) float64 {
	v, err := d.t.Scalar(key)
	if errors.Is(err, ErrMissingKey) {
		return def
	}
	d.keep(err)
	return v
}

// Positive reads a required strictly positive number.
func (d *Decoder) Positive(key string) float64 {
	v, err := d.t.Scalar(key)
	if d.keep(err) && v <= 0 {
		d.keep(d.t.malformed(key, errors.New("must be strictly positive")))
	}
	return v
}

// IntOr reads an optional integer.
func (d *Decoder) IntOr(key string, def int) int {
	v, err := d.t.Int(key)
	if errors.Is(err, ErrMissingKey) {
		return def
	}
	d.keep(err)
	return v
}

// BoolOr reads an optional boolean.
func (d *Decoder) BoolOr(key string, def bool) bool {
	v, err := d.t.Bool(key)
	if errors.Is(err, ErrMissingKey) {
		return def
	}
	d.keep(err)
	return v
}

// String reads a required string.
func (d *Decoder) String(key string) string {
	v, err := d.t.String(key)
	d.keep(err)
	return v
}

// StringOr reads an optional string.
func (d *Decoder) StringOr(key, def string) string {
	v, err := d.t.String(key)
	if errors.Is(err, ErrMissingKey) {
		return def
	}
	d.keep(err)
	return v
}

// Vector3 reads a required 3-vector; the nil vector is returned on error.
func (d *Decoder) Vector3(key string) []float64 {
	v, err := d.t.Vector3(key)
	if !d.keep(err) {
		return []float64{0, 0, 0}
	}
	return v
}

// Vector3Or reads an optional 3-vector.
func (d *Decoder) Vector3Or(key string, def []float64) []float64 {
	if !d.t.IsSet(key) {
		return append([]float64(nil), def...)
	}
	return d.Vector3(key)
}

// Matrix3 reads a required 3x3 matrix; the identity is returned on error.
func (d *Decoder) Matrix3(key string) *mat64.Dense {
	m, err := d.t.Matrix3(key)
	if !d.keep(err) {
		return numeric.Identity3()
	}
	return m
}

// Table reads a required table.
func (d *Decoder) Table(key string) numeric.Table1D {
	tbl, err := d.t.Table(key)
	d.keep(err)
	return tbl
}

// TableOr reads an optional table, defaulting to the constant def.
func (d *Decoder) TableOr(key string, def float64) numeric.Table1D {
	if !d.t.IsSet(key) {
		return numeric.ConstTable1D(def)
	}
	return d.Table(key)
}

// Table2D reads a required 2-D table.
func (d *Decoder) Table2D(key string) numeric.Table2D {
	tbl, err := d.t.Table2D(key)
	d.keep(err)
	return tbl
}

// Sub reads a required subtree.
func (d *Decoder) Sub(key string) *Tree {
	s, err := d.t.Sub(key)
	if !d.keep(err) {
		return FromMap(map[string]interface{}{})
	}
	return s
}

// List reads a required array of tables.
func (d *Decoder) List(key string) []*Tree {
	l, err := d.t.List(key)
	d.keep(err)
	return l
}

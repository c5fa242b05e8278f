// Package conf reads the tree-structured aircraft configuration.
//
// A Tree is a thin layer over viper which turns loosely typed configuration values
// into the scalars, vectors, matrices and tables the models need, and fails fast with
// the fully qualified key when something is missing or malformed.
package conf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/ChristopherRabotin/fdm/numeric"
	"github.com/gonum/matrix/mat64"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var (
	// ErrMissingKey is returned when a required key is absent.
	ErrMissingKey = errors.New("missing configuration key")
	// ErrMalformed is returned when a value does not have the expected type or shape.
	ErrMalformed = errors.New("malformed configuration value")
)

// Tree is a (sub)tree of the configuration.
type Tree struct {
	v    *viper.Viper
	path string
}

// Load reads a configuration file, the format being deduced from its extension.
func Load(path string) (*Tree, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformed, path, err)
	}
	return &Tree{v: v}, nil
}

// Parse reads a configuration from memory, e.g. Parse(data, "toml").
func Parse(data []byte, format string) (*Tree, error) {
	v := viper.New()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	return &Tree{v: v}, nil
}

// FromMap builds a tree from nested maps.
func FromMap(m map[string]interface{}) *Tree {
	v := viper.New()
	if err := v.MergeConfigMap(m); err != nil {
		panic(fmt.Errorf("merging configuration map: %s", err))
	}
	return &Tree{v: v}
}

// Path returns the fully qualified path of this tree.
func (t *Tree) Path() string {
	return t.path
}

func (t *Tree) qualify(key string) string {
	if t.path == "" {
		return key
	}
	return t.path + "." + key
}

func (t *Tree) missing(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingKey, t.qualify(key))
}

func (t *Tree) malformed(key string, err error) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, t.qualify(key), err)
}

// IsSet reports whether the key exists.
func (t *Tree) IsSet(key string) bool {
	return t.v.IsSet(key)
}

// Sub returns the subtree at key.
func (t *Tree) Sub(key string) (*Tree, error) {
	s := t.v.Sub(key)
	if s == nil {
		return nil, t.missing(key)
	}
	return &Tree{v: s, path: t.qualify(key)}, nil
}

// List returns the array of tables found at key.
func (t *Tree) List(key string) ([]*Tree, error) {
	if !t.v.IsSet(key) {
		return nil, t.missing(key)
	}
	items, err := toSlice(t.v.Get(key))
	if err != nil {
		return nil, t.malformed(key, err)
	}
	trees := make([]*Tree, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, t.malformed(fmt.Sprintf("%s[%d]", key, i), err)
		}
		sub := FromMap(m)
		sub.path = fmt.Sprintf("%s[%d]", t.qualify(key), i)
		trees[i] = sub
	}
	return trees, nil
}

// Scalar returns the number at key.
func (t *Tree) Scalar(key string) (float64, error) {
	if !t.v.IsSet(key) {
		return 0, t.missing(key)
	}
	f, err := cast.ToFloat64E(t.v.Get(key))
	if err != nil {
		return 0, t.malformed(key, err)
	}
	if !numeric.IsFinite(f) {
		return 0, t.malformed(key, numeric.ErrNotFinite)
	}
	return f, nil
}

// Int returns the integer at key.
func (t *Tree) Int(key string) (int, error) {
	if !t.v.IsSet(key) {
		return 0, t.missing(key)
	}
	i, err := cast.ToIntE(t.v.Get(key))
	if err != nil {
		return 0, t.malformed(key, err)
	}
	return i, nil
}

// Bool returns the boolean at key.
func (t *Tree) Bool(key string) (bool, error) {
	if !t.v.IsSet(key) {
		return false, t.missing(key)
	}
	b, err := cast.ToBoolE(t.v.Get(key))
	if err != nil {
		return false, t.malformed(key, err)
	}
	return b, nil
}

// String returns the string at key.
func (t *Tree) String(key string) (string, error) {
	if !t.v.IsSet(key) {
		return "", t.missing(key)
	}
	s, err := cast.ToStringE(t.v.Get(key))
	if err != nil {
		return "", t.malformed(key, err)
	}
	return s, nil
}

// Vector returns the array of numbers at key.
func (t *Tree) Vector(key string) ([]float64, error) {
	if !t.v.IsSet(key) {
		return nil, t.missing(key)
	}
	v, err := toFloats(t.v.Get(key))
	if err != nil {
		return nil, t.malformed(key, err)
	}
	return v, nil
}

// Vector3 returns the 3-vector at key.
func (t *Tree) Vector3(key string) ([]float64, error) {
	v, err := t.Vector(key)
	if err != nil {
		return nil, err
	}
	if len(v) != 3 {
		return nil, t.malformed(key, fmt.Errorf("expected 3 elements, got %d", len(v)))
	}
	return v, nil
}

// Matrix returns the array of rows at key as a dense matrix.
func (t *Tree) Matrix(key string) (*mat64.Dense, error) {
	rows, err := t.rows(key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, t.malformed(key, errors.New("empty matrix"))
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, r := range rows {
		if len(r) != c {
			return nil, t.malformed(key, fmt.Errorf("row %d has %d columns, expected %d", i, len(r), c))
		}
		data = append(data, r...)
	}
	return mat64.NewDense(len(rows), c, data), nil
}

// Matrix3 returns the 3x3 matrix at key.
func (t *Tree) Matrix3(key string) (*mat64.Dense, error) {
	m, err := t.Matrix(key)
	if err != nil {
		return nil, err
	}
	if r, c := m.Dims(); r != 3 || c != 3 {
		return nil, t.malformed(key, fmt.Errorf("expected 3x3, got %dx%d", r, c))
	}
	return m, nil
}

// Table returns the table at key, given as rows of [x, y] pairs.
func (t *Tree) Table(key string) (numeric.Table1D, error) {
	rows, err := t.rows(key)
	if err != nil {
		return numeric.Table1D{}, err
	}
	keys := make([]float64, len(rows))
	values := make([]float64, len(rows))
	for i, r := range rows {
		if len(r) != 2 {
			return numeric.Table1D{}, t.malformed(key, fmt.Errorf("row %d has %d columns, expected 2", i, len(r)))
		}
		keys[i], values[i] = r[0], r[1]
	}
	tbl, err := numeric.NewTable1D(keys, values)
	if err != nil {
		return numeric.Table1D{}, t.malformed(key, err)
	}
	return tbl, nil
}

// Table2D returns the 2-D table at key, given by its rows, cols and data entries.
func (t *Tree) Table2D(key string) (numeric.Table2D, error) {
	rowKeys, err := t.Vector(key + ".rows")
	if err != nil {
		return numeric.Table2D{}, err
	}
	colKeys, err := t.Vector(key + ".cols")
	if err != nil {
		return numeric.Table2D{}, err
	}
	data, err := t.rows(key + ".data")
	if err != nil {
		return numeric.Table2D{}, err
	}
	tbl, err := numeric.NewTable2D(rowKeys, colKeys, data)
	if err != nil {
		return numeric.Table2D{}, t.malformed(key, err)
	}
	return tbl, nil
}

func (t *Tree) rows(key string) ([][]float64, error) {
	if !t.v.IsSet(key) {
		return nil, t.missing(key)
	}
	items, err := toSlice(t.v.Get(key))
	if err != nil {
		return nil, t.malformed(key, err)
	}
	rows := make([][]float64, len(items))
	for i, item := range items {
		if rows[i], err = toFloats(item); err != nil {
			return nil, t.malformed(fmt.Sprintf("%s[%d]", key, i), err)
		}
	}
	return rows, nil
}

func toFloats(v interface{}) ([]float64, error) {
	items, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = cast.ToFloat64E(item); err != nil {
			return nil, err
		}
		if !numeric.IsFinite(out[i]) {
			return nil, numeric.ErrNotFinite
		}
	}
	return out, nil
}

// toSlice accepts any array type, viper handing back []interface{} from files and
// typed slices from maps merged in code.
func toSlice(v interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%T is not an array", v)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

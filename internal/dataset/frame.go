// Package dataset implements the in-memory tabular engine the pipeline
// stages operate on. A Frame is a column-oriented table with typed columns
// (string, float64, time) and per-cell validity. All operations are
// deterministic for a given input row order: joins and group-bys emit rows
// in first-appearance order, and sorts are stable.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ColumnType identifies the value type of a Frame column.
type ColumnType int

const (
	StringType ColumnType = iota
	FloatType
	TimeType
)

// String returns the type name for error messages.
func (t ColumnType) String() string {
	switch t {
	case StringType:
		return "string"
	case FloatType:
		return "float"
	case TimeType:
		return "time"
	default:
		return "unknown"
	}
}

// Column is a typed, nullable column. Only the slice matching the column
// type is populated; valid marks per-cell nullness.
type Column struct {
	name   string
	typ    ColumnType
	strs   []string
	floats []float64
	times  []time.Time
	valid  []bool
}

// NewStringColumn creates a string column. A nil valid slice means every
// cell is valid.
func NewStringColumn(name string, values []string, valid []bool) *Column {
	return &Column{name: name, typ: StringType, strs: values, valid: normalizeValid(valid, len(values))}
}

// NewFloatColumn creates a float64 column.
func NewFloatColumn(name string, values []float64, valid []bool) *Column {
	return &Column{name: name, typ: FloatType, floats: values, valid: normalizeValid(valid, len(values))}
}

// NewTimeColumn creates a time column.
func NewTimeColumn(name string, values []time.Time, valid []bool) *Column {
	return &Column{name: name, typ: TimeType, times: values, valid: normalizeValid(valid, len(values))}
}

func normalizeValid(valid []bool, n int) []bool {
	if valid != nil {
		return valid
	}
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Type returns the column type.
func (c *Column) Type() ColumnType { return c.typ }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.valid) }

// IsNull reports whether the cell at row i is null.
func (c *Column) IsNull(i int) bool { return !c.valid[i] }

// StringAt returns the string value at row i; ok is false when the cell is
// null or the column is not a string column.
func (c *Column) StringAt(i int) (string, bool) {
	if c.typ != StringType || !c.valid[i] {
		return "", false
	}
	return c.strs[i], true
}

// FloatAt returns the float value at row i.
func (c *Column) FloatAt(i int) (float64, bool) {
	if c.typ != FloatType || !c.valid[i] {
		return 0, false
	}
	return c.floats[i], true
}

// TimeAt returns the time value at row i.
func (c *Column) TimeAt(i int) (time.Time, bool) {
	if c.typ != TimeType || !c.valid[i] {
		return time.Time{}, false
	}
	return c.times[i], true
}

// take builds a new column containing the cells at the given row indexes.
// A negative index produces a null cell.
func (c *Column) take(idx []int) *Column {
	out := &Column{name: c.name, typ: c.typ, valid: make([]bool, len(idx))}
	switch c.typ {
	case StringType:
		out.strs = make([]string, len(idx))
	case FloatType:
		out.floats = make([]float64, len(idx))
	case TimeType:
		out.times = make([]time.Time, len(idx))
	}
	for j, i := range idx {
		if i < 0 || !c.valid[i] {
			continue
		}
		out.valid[j] = true
		switch c.typ {
		case StringType:
			out.strs[j] = c.strs[i]
		case FloatType:
			out.floats[j] = c.floats[i]
		case TimeType:
			out.times[j] = c.times[i]
		}
	}
	return out
}

// rename returns a shallow copy of the column under a new name.
func (c *Column) rename(name string) *Column {
	out := *c
	out.name = name
	return &out
}

// Frame is an immutable column-oriented table. Operations return new Frames
// and never mutate their receiver.
type Frame struct {
	cols   []*Column
	byName map[string]int
	nrows  int
}

// NewFrame assembles a Frame from columns. All columns must share the same
// length and have unique names.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{cols: cols, byName: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.byName[c.name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.name)
		}
		f.byName[c.name] = i
		if i == 0 {
			f.nrows = c.Len()
		} else if c.Len() != f.nrows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.name, c.Len(), f.nrows)
		}
	}
	return f, nil
}

// Empty returns a zero-row Frame with the same schema as f.
func (f *Frame) Empty() *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(nil)
	}
	out, _ := NewFrame(cols...)
	return out
}

// NumRows returns the row count.
func (f *Frame) NumRows() int { return f.nrows }

// NumColumns returns the column count.
func (f *Frame) NumColumns() int { return len(f.cols) }

// ColumnNames returns the column names in declaration order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.name
	}
	return names
}

// Column returns the named column, or false when absent.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.byName[name]
	return ok
}

func (f *Frame) mustColumn(name string) (*Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return c, nil
}

// Select returns a Frame holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.mustColumn(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return NewFrame(cols...)
}

// Drop returns a Frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	dropped := make(map[string]struct{}, len(names))
	for _, n := range names {
		dropped[n] = struct{}{}
	}
	cols := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if _, skip := dropped[c.name]; !skip {
			cols = append(cols, c)
		}
	}
	return NewFrame(cols...)
}

// Rename returns a Frame with the column old renamed to new.
func (f *Frame) Rename(old, new string) (*Frame, error) {
	if _, err := f.mustColumn(old); err != nil {
		return nil, err
	}
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		if c.name == old {
			cols[i] = c.rename(new)
		} else {
			cols[i] = c
		}
	}
	return NewFrame(cols...)
}

// WithColumn returns a Frame with the given column appended, or replacing an
// existing column of the same name.
func (f *Frame) WithColumn(col *Column) (*Frame, error) {
	if f.nrows != col.Len() && len(f.cols) > 0 {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", col.name, col.Len(), f.nrows)
	}
	cols := make([]*Column, 0, len(f.cols)+1)
	replaced := false
	for _, c := range f.cols {
		if c.name == col.name {
			cols = append(cols, col)
			replaced = true
		} else {
			cols = append(cols, c)
		}
	}
	if !replaced {
		cols = append(cols, col)
	}
	return NewFrame(cols...)
}

// WithConstantString returns a Frame with an appended string column holding
// the same value in every row.
func (f *Frame) WithConstantString(name, value string) (*Frame, error) {
	values := make([]string, f.nrows)
	for i := range values {
		values[i] = value
	}
	return f.WithColumn(NewStringColumn(name, values, nil))
}

// Filter returns a Frame holding the rows for which keep returns true,
// preserving row order.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	idx := make([]int, 0, f.nrows)
	for i := 0; i < f.nrows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return f.takeRows(idx)
}

func (f *Frame) takeRows(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(idx)
	}
	out, _ := NewFrame(cols...)
	return out
}

// HorizontalSum returns a Frame with an appended float column holding, per
// row, the sum of the named input columns. Null cells contribute zero; an
// empty input list produces an all-zero column.
func (f *Frame) HorizontalSum(name string, inputs []string) (*Frame, error) {
	srcs := make([]*Column, 0, len(inputs))
	for _, n := range inputs {
		c, err := f.mustColumn(n)
		if err != nil {
			return nil, err
		}
		if c.typ != FloatType {
			return nil, fmt.Errorf("column %q is %s, expected float", n, c.typ)
		}
		srcs = append(srcs, c)
	}
	sums := make([]float64, f.nrows)
	for _, c := range srcs {
		for i := 0; i < f.nrows; i++ {
			if c.valid[i] {
				sums[i] += c.floats[i]
			}
		}
	}
	return f.WithColumn(NewFloatColumn(name, sums, nil))
}

// FillNullFloat returns a Frame where null cells of the named float column
// are replaced by the given value.
func (f *Frame) FillNullFloat(name string, value float64) (*Frame, error) {
	c, err := f.mustColumn(name)
	if err != nil {
		return nil, err
	}
	if c.typ != FloatType {
		return nil, fmt.Errorf("column %q is %s, expected float", name, c.typ)
	}
	values := make([]float64, f.nrows)
	for i := 0; i < f.nrows; i++ {
		if c.valid[i] {
			values[i] = c.floats[i]
		} else {
			values[i] = value
		}
	}
	return f.WithColumn(NewFloatColumn(name, values, nil))
}

// MultiplyColumns returns a Frame with an appended float column holding the
// per-row product a*b. The product is null when either factor is null.
func (f *Frame) MultiplyColumns(name, a, b string) (*Frame, error) {
	ca, err := f.mustColumn(a)
	if err != nil {
		return nil, err
	}
	cb, err := f.mustColumn(b)
	if err != nil {
		return nil, err
	}
	if ca.typ != FloatType || cb.typ != FloatType {
		return nil, fmt.Errorf("columns %q and %q must both be float", a, b)
	}
	values := make([]float64, f.nrows)
	valid := make([]bool, f.nrows)
	for i := 0; i < f.nrows; i++ {
		if ca.valid[i] && cb.valid[i] {
			values[i] = ca.floats[i] * cb.floats[i]
			valid[i] = true
		}
	}
	return f.WithColumn(NewFloatColumn(name, values, valid))
}

// JoinKind selects the join semantics of Frame.Join.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
)

// keySeparator delimits composite key parts. It never occurs in dimension
// values.
const keySeparator = "\x1f"

// compositeKey encodes the join/group key cells of row i. ok is false when
// any key cell is null.
func compositeKey(cols []*Column, i int) (string, bool) {
	var sb strings.Builder
	for k, c := range cols {
		if !c.valid[i] {
			return "", false
		}
		if k > 0 {
			sb.WriteString(keySeparator)
		}
		switch c.typ {
		case StringType:
			sb.WriteString(c.strs[i])
		case FloatType:
			sb.WriteString(strconv.FormatFloat(c.floats[i], 'g', -1, 64))
		case TimeType:
			sb.WriteString(strconv.FormatInt(c.times[i].UnixNano(), 10))
		}
	}
	return sb.String(), true
}

func keyColumns(f *Frame, on []string) ([]*Column, error) {
	cols := make([]*Column, 0, len(on))
	for _, n := range on {
		c, err := f.mustColumn(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// Join performs a hash join between f (left) and right on the named key
// columns, which must exist on both sides under the same names. Null join
// keys never match (SQL semantics): for outer kinds such rows are emitted
// unmatched, for inner joins they are dropped. The result carries the key
// columns (taken from the anchor side: left for inner/left joins, right for
// right joins), then the remaining left columns, then the remaining right
// columns. Matches are emitted in anchor-side row order.
func (f *Frame) Join(right *Frame, on []string, kind JoinKind) (*Frame, error) {
	leftKeys, err := keyColumns(f, on)
	if err != nil {
		return nil, fmt.Errorf("left join side: %w", err)
	}
	rightKeys, err := keyColumns(right, on)
	if err != nil {
		return nil, fmt.Errorf("right join side: %w", err)
	}
	for i, n := range on {
		if leftKeys[i].typ != rightKeys[i].typ {
			return nil, fmt.Errorf("join key %q type mismatch: %s vs %s", n, leftKeys[i].typ, rightKeys[i].typ)
		}
	}
	onSet := make(map[string]struct{}, len(on))
	for _, n := range on {
		onSet[n] = struct{}{}
	}
	for _, c := range f.cols {
		if _, isKey := onSet[c.name]; isKey {
			continue
		}
		if right.HasColumn(c.name) {
			return nil, fmt.Errorf("non-key column %q exists on both join sides", c.name)
		}
	}

	// Index the probe side: right rows for inner/left joins, left rows for
	// right joins.
	buildFrame, buildKeys := right, rightKeys
	if kind == RightJoin {
		buildFrame, buildKeys = f, leftKeys
	}
	index := make(map[string][]int, buildFrame.nrows)
	for i := 0; i < buildFrame.nrows; i++ {
		if key, ok := compositeKey(buildKeys, i); ok {
			index[key] = append(index[key], i)
		}
	}

	var leftIdx, rightIdx []int
	switch kind {
	case InnerJoin, LeftJoin:
		for i := 0; i < f.nrows; i++ {
			key, ok := compositeKey(leftKeys, i)
			matches := index[key]
			if ok && len(matches) > 0 {
				for _, j := range matches {
					leftIdx = append(leftIdx, i)
					rightIdx = append(rightIdx, j)
				}
			} else if kind == LeftJoin {
				leftIdx = append(leftIdx, i)
				rightIdx = append(rightIdx, -1)
			}
		}
	case RightJoin:
		for j := 0; j < right.nrows; j++ {
			key, ok := compositeKey(rightKeys, j)
			matches := index[key]
			if ok && len(matches) > 0 {
				for _, i := range matches {
					leftIdx = append(leftIdx, i)
					rightIdx = append(rightIdx, j)
				}
			} else {
				leftIdx = append(leftIdx, -1)
				rightIdx = append(rightIdx, j)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported join kind: %d", kind)
	}

	cols := make([]*Column, 0, len(f.cols)+len(right.cols)-len(on))
	// Key columns come from the anchor side so outer rows keep their keys.
	anchorKeys, anchorIdx := leftKeys, leftIdx
	if kind == RightJoin {
		anchorKeys, anchorIdx = rightKeys, rightIdx
	}
	for _, c := range anchorKeys {
		cols = append(cols, c.take(anchorIdx))
	}
	for _, c := range f.cols {
		if _, isKey := onSet[c.name]; !isKey {
			cols = append(cols, c.take(leftIdx))
		}
	}
	for _, c := range right.cols {
		if _, isKey := onSet[c.name]; !isKey {
			cols = append(cols, c.take(rightIdx))
		}
	}
	return NewFrame(cols...)
}

// GroupBySum groups rows by the named key columns and sums the named float
// columns per group. Null key cells group together (a single null-key
// group, SQL GROUP BY semantics); groups whose contributions are all null
// sum to zero. Groups are emitted in first-appearance order.
func (f *Frame) GroupBySum(keys []string, sums []string) (*Frame, error) {
	keyCols, err := keyColumns(f, keys)
	if err != nil {
		return nil, err
	}
	sumCols := make([]*Column, 0, len(sums))
	for _, n := range sums {
		c, err := f.mustColumn(n)
		if err != nil {
			return nil, err
		}
		if c.typ != FloatType {
			return nil, fmt.Errorf("aggregate column %q is %s, expected float", n, c.typ)
		}
		sumCols = append(sumCols, c)
	}

	type group struct {
		firstRow int
		totals   []float64
	}
	groups := make(map[string]*group, f.nrows)
	order := make([]*group, 0)
	for i := 0; i < f.nrows; i++ {
		key := groupKey(keyCols, i)
		g, ok := groups[key]
		if !ok {
			g = &group{firstRow: i, totals: make([]float64, len(sumCols))}
			groups[key] = g
			order = append(order, g)
		}
		for s, c := range sumCols {
			if c.valid[i] {
				g.totals[s] += c.floats[i]
			}
		}
	}

	firstRows := make([]int, len(order))
	for i, g := range order {
		firstRows[i] = g.firstRow
	}
	cols := make([]*Column, 0, len(keyCols)+len(sumCols))
	for _, c := range keyCols {
		cols = append(cols, c.take(firstRows))
	}
	for s, c := range sumCols {
		totals := make([]float64, len(order))
		for i, g := range order {
			totals[i] = g.totals[s]
		}
		cols = append(cols, NewFloatColumn(c.name, totals, nil))
	}
	return NewFrame(cols...)
}

// groupKey encodes the key cells of row i for grouping. Unlike join keys,
// null cells participate and are encoded distinctly from any valid value.
func groupKey(cols []*Column, i int) string {
	var sb strings.Builder
	for k, c := range cols {
		if k > 0 {
			sb.WriteString(keySeparator)
		}
		if !c.valid[i] {
			sb.WriteString("\x00null")
			continue
		}
		switch c.typ {
		case StringType:
			sb.WriteString(c.strs[i])
		case FloatType:
			sb.WriteString(strconv.FormatFloat(c.floats[i], 'g', -1, 64))
		case TimeType:
			sb.WriteString(strconv.FormatInt(c.times[i].UnixNano(), 10))
		}
	}
	return sb.String()
}

// SortBy returns a Frame with rows stably sorted ascending by the named key
// columns. Null cells sort before any valid value.
func (f *Frame) SortBy(keys ...string) (*Frame, error) {
	keyCols, err := keyColumns(f, keys)
	if err != nil {
		return nil, err
	}
	idx := make([]int, f.nrows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return compareRows(keyCols, idx[a], idx[b]) < 0
	})
	return f.takeRows(idx), nil
}

func compareRows(cols []*Column, a, b int) int {
	for _, c := range cols {
		av, bv := c.valid[a], c.valid[b]
		if !av || !bv {
			if av == bv {
				continue
			}
			if !av {
				return -1
			}
			return 1
		}
		switch c.typ {
		case StringType:
			if c.strs[a] != c.strs[b] {
				if c.strs[a] < c.strs[b] {
					return -1
				}
				return 1
			}
		case FloatType:
			if c.floats[a] != c.floats[b] {
				if c.floats[a] < c.floats[b] {
					return -1
				}
				return 1
			}
		case TimeType:
			if !c.times[a].Equal(c.times[b]) {
				if c.times[a].Before(c.times[b]) {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}

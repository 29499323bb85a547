package dataset

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, cols ...*Column) *Frame {
	t.Helper()
	f, err := NewFrame(cols...)
	require.NoError(t, err)
	return f
}

func TestNewFrame_Validation(t *testing.T) {
	_, err := NewFrame(
		NewStringColumn("a", []string{"x"}, nil),
		NewStringColumn("a", []string{"y"}, nil),
	)
	assert.Error(t, err, "duplicate column names should be rejected")

	_, err = NewFrame(
		NewStringColumn("a", []string{"x", "y"}, nil),
		NewFloatColumn("b", []float64{1}, nil),
	)
	assert.Error(t, err, "ragged column lengths should be rejected")
}

func TestFrame_SelectRenameDrop(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("id", []string{"a", "b"}, nil),
		NewFloatColumn("v", []float64{1, 2}, nil),
	)

	sel, err := f.Select("v")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, sel.ColumnNames())
	assert.Equal(t, 2, sel.NumRows())

	ren, err := f.Rename("v", "value")
	require.NoError(t, err)
	assert.True(t, ren.HasColumn("value"))
	assert.False(t, ren.HasColumn("v"))
	// The receiver is untouched.
	assert.True(t, f.HasColumn("v"))

	dropped, err := f.Drop("v", "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, dropped.ColumnNames())

	_, err = f.Select("missing")
	assert.Error(t, err)
}

func TestFrame_Filter(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("id", []string{"a", "b", "c"}, nil),
		NewFloatColumn("v", []float64{1, 2, 3}, nil),
	)
	idCol, _ := f.Column("id")
	got := f.Filter(func(i int) bool {
		s, _ := idCol.StringAt(i)
		return s != "b"
	})
	require.Equal(t, 2, got.NumRows())
	c, _ := got.Column("id")
	s0, _ := c.StringAt(0)
	s1, _ := c.StringAt(1)
	assert.Equal(t, "a", s0)
	assert.Equal(t, "c", s1)
}

func TestFrame_InnerJoin(t *testing.T) {
	left := mustFrame(t,
		NewStringColumn("id", []string{"a", "b", "c"}, nil),
		NewFloatColumn("v", []float64{1, 2, 3}, nil),
	)
	right := mustFrame(t,
		NewStringColumn("id", []string{"b", "c", "d"}, nil),
		NewStringColumn("label", []string{"B", "C", "D"}, nil),
	)

	got, err := left.Join(right, []string{"id"}, InnerJoin)
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())
	ids, _ := got.Column("id")
	labels, _ := got.Column("label")
	id0, _ := ids.StringAt(0)
	l0, _ := labels.StringAt(0)
	assert.Equal(t, "b", id0)
	assert.Equal(t, "B", l0)
}

func TestFrame_LeftJoin_UnmatchedRowsKeepNulls(t *testing.T) {
	left := mustFrame(t,
		NewStringColumn("geography", []string{"G1", "G2"}, nil),
		NewFloatColumn("fraction", []float64{0.5, 0.25}, nil),
	)
	right := mustFrame(t,
		NewStringColumn("geography", []string{"G1"}, nil),
		NewStringColumn("timezone", []string{"EPT"}, nil),
	)

	got, err := left.Join(right, []string{"geography"}, LeftJoin)
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())
	tz, _ := got.Column("timezone")
	_, ok := tz.StringAt(0)
	assert.True(t, ok)
	assert.True(t, tz.IsNull(1), "unmatched left row must carry a null, not be dropped")
}

func TestFrame_RightJoin_AnchorSideIsAuthoritative(t *testing.T) {
	agg := mustFrame(t,
		NewStringColumn("hour", []string{"5"}, nil),
		NewFloatColumn("electricity", []float64{10}, nil),
	)
	calendar := mustFrame(t,
		NewStringColumn("hour", []string{"5", "6"}, nil),
		NewTimeColumn("timestamp", []time.Time{
			time.Date(2012, 1, 1, 5, 0, 0, 0, time.UTC),
			time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC),
		}, nil),
	)

	got, err := agg.Join(calendar, []string{"hour"}, RightJoin)
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows(), "every calendar row must appear")

	elec, _ := got.Column("electricity")
	v0, ok := elec.FloatAt(0)
	assert.True(t, ok)
	assert.Equal(t, 10.0, v0)
	assert.True(t, elec.IsNull(1), "calendar row without an aggregate match keeps a null measure")

	ts, _ := got.Column("timestamp")
	_, ok = ts.TimeAt(1)
	assert.True(t, ok, "right join keeps anchor-side keys on unmatched rows")
}

func TestFrame_Join_NullKeysNeverMatch(t *testing.T) {
	left := mustFrame(t,
		NewStringColumn("k", []string{"x", ""}, []bool{true, false}),
		NewFloatColumn("v", []float64{1, 2}, nil),
	)
	right := mustFrame(t,
		NewStringColumn("k", []string{"x", ""}, []bool{true, false}),
		NewStringColumn("label", []string{"X", "NULL"}, nil),
	)

	inner, err := left.Join(right, []string{"k"}, InnerJoin)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.NumRows(), "null keys must not match each other")

	outer, err := left.Join(right, []string{"k"}, LeftJoin)
	require.NoError(t, err)
	require.Equal(t, 2, outer.NumRows())
	labels, _ := outer.Column("label")
	assert.True(t, labels.IsNull(1), "null-key left row is emitted unmatched")
}

func TestFrame_Join_RejectsCollidingColumns(t *testing.T) {
	left := mustFrame(t,
		NewStringColumn("k", []string{"x"}, nil),
		NewFloatColumn("v", []float64{1}, nil),
	)
	right := mustFrame(t,
		NewStringColumn("k", []string{"x"}, nil),
		NewFloatColumn("v", []float64{2}, nil),
	)
	_, err := left.Join(right, []string{"k"}, InnerJoin)
	assert.Error(t, err)
}

func TestFrame_GroupBySum(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("g", []string{"a", "b", "a", "b"}, nil),
		NewFloatColumn("v", []float64{1, 2, 3, 4}, nil),
	)
	got, err := f.GroupBySum([]string{"g"}, []string{"v"})
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())

	// Groups keep first-appearance order.
	g, _ := got.Column("g")
	v, _ := got.Column("v")
	g0, _ := g.StringAt(0)
	v0, _ := v.FloatAt(0)
	g1, _ := g.StringAt(1)
	v1, _ := v.FloatAt(1)
	assert.Equal(t, "a", g0)
	assert.Equal(t, 4.0, v0)
	assert.Equal(t, "b", g1)
	assert.Equal(t, 6.0, v1)
}

func TestFrame_GroupBySum_AllNullContributionsSumToZero(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("g", []string{"a", "a"}, nil),
		NewFloatColumn("v", []float64{0, 0}, []bool{false, false}),
	)
	got, err := f.GroupBySum([]string{"g"}, []string{"v"})
	require.NoError(t, err)
	require.Equal(t, 1, got.NumRows())
	v, _ := got.Column("v")
	sum, ok := v.FloatAt(0)
	assert.True(t, ok)
	assert.Equal(t, 0.0, sum)
}

func TestFrame_GroupBySum_TimeKeys(t *testing.T) {
	ts := time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC)
	f := mustFrame(t,
		NewTimeColumn("timestamp", []time.Time{ts, ts, ts.Add(time.Hour)}, nil),
		NewFloatColumn("v", []float64{1, 2, 4}, nil),
	)
	got, err := f.GroupBySum([]string{"timestamp"}, []string{"v"})
	require.NoError(t, err)
	require.Equal(t, 2, got.NumRows())
	v, _ := got.Column("v")
	v0, _ := v.FloatAt(0)
	assert.Equal(t, 3.0, v0)
}

func TestFrame_HorizontalSum(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("id", []string{"a", "b"}, nil),
		NewFloatColumn("heating", []float64{1, 2}, nil),
		NewFloatColumn("cooling", []float64{10, 0}, []bool{true, false}),
	)
	got, err := f.HorizontalSum("electricity", []string{"heating", "cooling"})
	require.NoError(t, err)
	e, _ := got.Column("electricity")
	v0, _ := e.FloatAt(0)
	v1, _ := e.FloatAt(1)
	assert.Equal(t, 11.0, v0)
	assert.Equal(t, 2.0, v1, "null cells contribute zero")
}

func TestFrame_HorizontalSum_EmptyInputsYieldZeroColumn(t *testing.T) {
	f := mustFrame(t, NewStringColumn("id", []string{"a", "b"}, nil))
	got, err := f.HorizontalSum("electricity", nil)
	require.NoError(t, err)
	e, _ := got.Column("electricity")
	for i := 0; i < got.NumRows(); i++ {
		v, ok := e.FloatAt(i)
		assert.True(t, ok)
		assert.Equal(t, 0.0, v)
	}
}

func TestFrame_FillThenMultiply_OrderMatters(t *testing.T) {
	// Defaulting from_fraction to 1 must happen before the multiplication;
	// filling afterwards would corrupt already-weighted rows.
	f := mustFrame(t,
		NewFloatColumn("fraction", []float64{0.5, 0.5}, nil),
		NewFloatColumn("from_fraction", []float64{2, 0}, []bool{true, false}),
	)
	filled, err := f.FillNullFloat("from_fraction", 1)
	require.NoError(t, err)
	got, err := filled.MultiplyColumns("weight", "fraction", "from_fraction")
	require.NoError(t, err)

	w, _ := got.Column("weight")
	w0, _ := w.FloatAt(0)
	w1, _ := w.FloatAt(1)
	assert.Equal(t, 1.0, w0)
	assert.Equal(t, 0.5, w1)
}

func TestFrame_MultiplyColumns_Commutative(t *testing.T) {
	f := mustFrame(t,
		NewFloatColumn("a", []float64{0.5, 0.125, 3}, nil),
		NewFloatColumn("b", []float64{2, 8, 0.25}, nil),
	)
	ab, err := f.MultiplyColumns("w", "a", "b")
	require.NoError(t, err)
	ba, err := f.MultiplyColumns("w", "b", "a")
	require.NoError(t, err)

	wab, _ := ab.Column("w")
	wba, _ := ba.Column("w")
	for i := 0; i < f.NumRows(); i++ {
		va, _ := wab.FloatAt(i)
		vb, _ := wba.FloatAt(i)
		assert.Equal(t, va, vb)
	}
}

func TestFrame_SortBy(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("scenario", []string{"s2", "s1", "s1"}, nil),
		NewStringColumn("geography", []string{"G1", "G2", "G1"}, nil),
		NewFloatColumn("v", []float64{1, 2, 3}, nil),
	)
	got, err := f.SortBy("scenario", "geography")
	require.NoError(t, err)
	v, _ := got.Column("v")
	v0, _ := v.FloatAt(0)
	v1, _ := v.FloatAt(1)
	v2, _ := v.FloatAt(2)
	assert.Equal(t, []float64{3, 2, 1}, []float64{v0, v1, v2})
}

func TestFrame_SortBy_NullsFirstAndStable(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("k", []string{"b", "", "a", ""}, []bool{true, false, true, false}),
		NewFloatColumn("v", []float64{1, 2, 3, 4}, nil),
	)
	got, err := f.SortBy("k")
	require.NoError(t, err)
	v, _ := got.Column("v")
	v0, _ := v.FloatAt(0)
	v1, _ := v.FloatAt(1)
	assert.Equal(t, 2.0, v0, "nulls sort first")
	assert.Equal(t, 4.0, v1, "equal keys keep input order")
}

func TestReadCSV(t *testing.T) {
	content := "from_id,to_id,from_fraction\nG1,R1,0.5\nG2,,\nG3,R2,\n"
	f, err := ReadCSV(strings.NewReader(content), map[string]bool{"from_fraction": true})
	require.NoError(t, err)
	require.Equal(t, 3, f.NumRows())

	to, _ := f.Column("to_id")
	assert.True(t, to.IsNull(1), "empty cell reads as null")

	fr, _ := f.Column("from_fraction")
	assert.Equal(t, FloatType, fr.Type())
	v0, ok := fr.FloatAt(0)
	assert.True(t, ok)
	assert.Equal(t, 0.5, v0)
	assert.True(t, fr.IsNull(2))
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), nil)
	assert.Error(t, err, "missing header is an error")

	_, err = ReadCSV(strings.NewReader("a,b\nx,notanumber\n"), map[string]bool{"b": true})
	assert.Error(t, err)
}

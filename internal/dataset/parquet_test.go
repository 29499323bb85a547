package dataset

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go/parquet"
)

func TestParquetRoundTrip(t *testing.T) {
	ts := []time.Time{
		time.Date(2012, 1, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2012, 12, 31, 23, 0, 0, 0, time.UTC),
	}
	src := mustFrame(t,
		NewStringColumn("geography", []string{"G1", "G2"}, nil),
		NewStringColumn("sector", []string{"com", ""}, []bool{true, false}),
		NewTimeColumn("timestamp", ts, nil),
		NewFloatColumn("electricity", []float64{5.0, 0}, []bool{true, false}),
	)

	content, err := WriteParquet(src, parquet.CompressionCodec_SNAPPY)
	require.NoError(t, err)
	require.NotEmpty(t, content)

	got, err := ReadParquet(content)
	require.NoError(t, err)
	require.Equal(t, src.NumRows(), got.NumRows())
	assert.Equal(t, src.ColumnNames(), got.ColumnNames())

	// Rows must decode back distinct; the writer buffers records by
	// reference, so a shared row slice would collapse them.
	geo, _ := got.Column("geography")
	g0, _ := geo.StringAt(0)
	assert.Equal(t, "G1", g0)
	g1, _ := geo.StringAt(1)
	assert.Equal(t, "G2", g1)

	sector, _ := got.Column("sector")
	s0, _ := sector.StringAt(0)
	assert.Equal(t, "com", s0)
	assert.True(t, sector.IsNull(1), "nulls survive the round trip")

	tsCol, _ := got.Column("timestamp")
	require.Equal(t, TimeType, tsCol.Type())
	t0, ok := tsCol.TimeAt(0)
	require.True(t, ok)
	assert.True(t, ts[0].Equal(t0))
	t1, ok := tsCol.TimeAt(1)
	require.True(t, ok)
	assert.True(t, ts[1].Equal(t1))

	elec, _ := got.Column("electricity")
	require.Equal(t, FloatType, elec.Type())
	v0, _ := elec.FloatAt(0)
	assert.Equal(t, 5.0, v0)
	assert.True(t, elec.IsNull(1))
}

func TestWriteParquet_Deterministic(t *testing.T) {
	f := mustFrame(t,
		NewStringColumn("scenario", []string{"base", "base", "high"}, nil),
		NewFloatColumn("electricity", []float64{1.5, 2.5, 3.5}, nil),
	)
	first, err := WriteParquet(f, parquet.CompressionCodec_SNAPPY)
	require.NoError(t, err)
	second, err := WriteParquet(f, parquet.CompressionCodec_SNAPPY)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "identical frames must encode to identical bytes")
}

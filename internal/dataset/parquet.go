package dataset

import (
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// ReadParquet decodes a flat Parquet file into a Frame. Column types map as
// BYTE_ARRAY/UTF8 -> string, FLOAT/DOUBLE/INT32/INT64 -> float64, and
// INT64 with a TIMESTAMP converted type -> time. Naive timestamps are
// materialized in UTC. The column set is taken from the file schema, which
// is what lets load tables carry dataset-specific end-use columns.
func ReadParquet(content []byte) (*Frame, error) {
	pf := buffer.NewBufferFileFromBytes(content)
	defer pf.Close()

	pr, err := reader.NewParquetColumnReader(pf, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet content: %w", err)
	}
	defer pr.ReadStop()

	numRows := pr.GetNumRows()
	numCols := int(pr.SchemaHandler.GetColumnNum())
	cols := make([]*Column, 0, numCols)

	for i := 0; i < numCols; i++ {
		// Leaf i corresponds to schema element i+1 in a flat schema.
		elem := pr.SchemaHandler.SchemaElements[i+1]
		name := pr.SchemaHandler.Infos[i+1].ExName

		values, _, dls, err := pr.ReadColumnByIndex(int64(i), numRows)
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet column %q: %w", name, err)
		}
		if int64(len(values)) != numRows {
			return nil, fmt.Errorf("parquet column %q yielded %d values, expected %d", name, len(values), numRows)
		}

		col, err := decodeParquetColumn(name, elem, values, dls)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return NewFrame(cols...)
}

func decodeParquetColumn(name string, elem *parquet.SchemaElement, values []interface{}, dls []int32) (*Column, error) {
	n := len(values)
	valid := make([]bool, n)
	maxDL := int32(0)
	if elem.GetRepetitionType() == parquet.FieldRepetitionType_OPTIONAL {
		maxDL = 1
	}
	isNull := func(i int) bool {
		if values[i] == nil {
			return true
		}
		return len(dls) == n && dls[i] < maxDL
	}

	switch elem.GetType() {
	case parquet.Type_BYTE_ARRAY, parquet.Type_FIXED_LEN_BYTE_ARRAY:
		strs := make([]string, n)
		for i := 0; i < n; i++ {
			if isNull(i) {
				continue
			}
			s, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("parquet column %q: unexpected value type %T", name, values[i])
			}
			strs[i] = s
			valid[i] = true
		}
		return NewStringColumn(name, strs, valid), nil

	case parquet.Type_INT64:
		if ct := elem.GetConvertedType(); elem.IsSetConvertedType() &&
			(ct == parquet.ConvertedType_TIMESTAMP_MILLIS || ct == parquet.ConvertedType_TIMESTAMP_MICROS) {
			return decodeParquetTimestamps(name, ct, values, valid, isNull)
		}
		floats := make([]float64, n)
		for i := 0; i < n; i++ {
			if isNull(i) {
				continue
			}
			v, ok := values[i].(int64)
			if !ok {
				return nil, fmt.Errorf("parquet column %q: unexpected value type %T", name, values[i])
			}
			floats[i] = float64(v)
			valid[i] = true
		}
		return NewFloatColumn(name, floats, valid), nil

	case parquet.Type_INT32, parquet.Type_FLOAT, parquet.Type_DOUBLE:
		floats := make([]float64, n)
		for i := 0; i < n; i++ {
			if isNull(i) {
				continue
			}
			switch v := values[i].(type) {
			case int32:
				floats[i] = float64(v)
			case float32:
				floats[i] = float64(v)
			case float64:
				floats[i] = v
			default:
				return nil, fmt.Errorf("parquet column %q: unexpected value type %T", name, values[i])
			}
			valid[i] = true
		}
		return NewFloatColumn(name, floats, valid), nil

	default:
		return nil, fmt.Errorf("parquet column %q has unsupported physical type %s", name, elem.GetType())
	}
}

func decodeParquetTimestamps(name string, ct parquet.ConvertedType, values []interface{}, valid []bool, isNull func(int) bool) (*Column, error) {
	times := make([]time.Time, len(values))
	for i := range values {
		if isNull(i) {
			continue
		}
		v, ok := values[i].(int64)
		if !ok {
			return nil, fmt.Errorf("parquet column %q: unexpected value type %T", name, values[i])
		}
		if ct == parquet.ConvertedType_TIMESTAMP_MICROS {
			times[i] = time.UnixMicro(v).UTC()
		} else {
			times[i] = time.UnixMilli(v).UTC()
		}
		valid[i] = true
	}
	return NewTimeColumn(name, times, valid), nil
}

// WriteParquet encodes a Frame as a flat Parquet file and returns the
// encoded bytes. Every column is written OPTIONAL so null cells survive a
// round trip; string -> BYTE_ARRAY/UTF8, float -> DOUBLE, time ->
// INT64/TIMESTAMP_MILLIS (naive, milliseconds since epoch). Output bytes
// are deterministic for a given Frame.
func WriteParquet(f *Frame, compression parquet.CompressionCodec) ([]byte, error) {
	md := make([]string, 0, f.NumColumns())
	for _, c := range f.cols {
		switch c.typ {
		case StringType:
			md = append(md, fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", c.name))
		case FloatType:
			md = append(md, fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", c.name))
		case TimeType:
			md = append(md, fmt.Sprintf("name=%s, type=INT64, convertedtype=TIMESTAMP_MILLIS, repetitiontype=OPTIONAL", c.name))
		}
	}

	pf := buffer.NewBufferFile()
	pw, err := writer.NewCSVWriter(md, pf, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compression
	// One row group per file keeps the output layout deterministic.
	pw.RowGroupSize = 128 * 1024 * 1024

	for i := 0; i < f.nrows; i++ {
		// The writer buffers the record by reference, so each row needs its
		// own slice.
		rec := make([]interface{}, f.NumColumns())
		for j, c := range f.cols {
			if !c.valid[i] {
				rec[j] = nil
				continue
			}
			switch c.typ {
			case StringType:
				rec[j] = c.strs[i]
			case FloatType:
				rec[j] = c.floats[i]
			case TimeType:
				rec[j] = c.times[i].UnixMilli()
			}
		}
		if err := pw.Write(rec); err != nil {
			return nil, fmt.Errorf("failed to write parquet row %d: %w", i, err)
		}
	}

	if err := stopParquetWriter(pw); err != nil {
		return nil, err
	}
	if err := pf.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet buffer: %w", err)
	}
	return pf.Bytes(), nil
}

// stopParquetWriter finalizes the writer, converting library panics into
// errors.
func stopParquetWriter(pw *writer.CSVWriter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if stopErr := pw.WriteStop(); stopErr != nil {
		return fmt.Errorf("failed to finalize parquet content: %w", stopErr)
	}
	return nil
}

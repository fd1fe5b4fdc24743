package embedding

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowStreamContentType is the media type of an Arrow IPC stream response.
const ArrowStreamContentType = "application/vnd.apache.arrow.stream"

// EmbeddingColumn is the column holding one embedding per row.
const EmbeddingColumn = "embedding"

// DecodeArrowStream reads an IPC stream whose records carry a list<float32> or
// fixed_size_list<float32> embedding column, one row per coordinate, in order.
func DecodeArrowStream(r io.Reader, mem memory.Allocator) ([]Vector, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("arrow stream: %w", err)
	}
	defer rdr.Release()

	var out []Vector
	for rdr.Next() {
		rec := rdr.Record()

		col := 0
		if idx := rec.Schema().FieldIndices(EmbeddingColumn); len(idx) > 0 {
			col = idx[0]
		} else if rec.NumCols() != 1 {
			return nil, fmt.Errorf("arrow stream: no %q column", EmbeddingColumn)
		}

		lists, ok := rec.Column(col).(array.ListLike)
		if !ok {
			return nil, fmt.Errorf("arrow stream: column %d is %s, want a list type", col, rec.Column(col).DataType())
		}
		values, ok := lists.ListValues().(*array.Float32)
		if !ok {
			return nil, fmt.Errorf("arrow stream: list values are %s, want float32", lists.ListValues().DataType())
		}
		raw := values.Float32Values()

		for i := 0; i < lists.Len(); i++ {
			if lists.IsNull(i) {
				return nil, fmt.Errorf("arrow stream: null embedding at row %d", len(out))
			}
			start, end := lists.ValueOffsets(i)
			v := make(Vector, end-start)
			copy(v, raw[start:end])
			out = append(out, v)
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("arrow stream: %w", err)
	}
	return out, nil
}

package geo

import (
	"errors"
	"io"

	"github.com/parquet-go/parquet-go"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
)

// PointRecord is the row layout of a catalog point in Parquet files and SQL tables
type PointRecord struct {
	Latitude  float64 `parquet:"latitude" db:"latitude"`
	Longitude float64 `parquet:"longitude" db:"longitude"`
}

// WriteParquet writes the catalog in index order as zstd-compressed Parquet.
func WriteParquet(w io.Writer, c *Catalog) error {
	pw := parquet.NewGenericWriter[PointRecord](w, parquet.Compression(&parquet.Zstd))

	const chunk = 4096
	rows := make([]PointRecord, 0, chunk)
	for i := 0; i < c.Len(); i++ {
		p := c.At(i)
		rows = append(rows, PointRecord{Latitude: p.Latitude, Longitude: p.Longitude})
		if len(rows) == chunk {
			if _, err := pw.Write(rows); err != nil {
				_ = pw.Close()
				return err
			}
			rows = rows[:0]
		}
	}
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			_ = pw.Close()
			return err
		}
	}
	return pw.Close()
}

// ReadParquet reads a Parquet catalog written by WriteParquet (or any file with
// latitude/longitude double columns). Row order is preserved.
func ReadParquet(r io.ReaderAt, size int64) (*Catalog, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, geoerrors.WrapValidationError(err, "read_parquet", "invalid parquet file")
	}

	pr := parquet.NewGenericReader[PointRecord](pf)
	defer func() { _ = pr.Close() }()

	rows := make([]PointRecord, pr.NumRows())
	n, err := pr.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, geoerrors.WrapValidationError(err, "read_parquet", "failed to read rows")
	}

	points := make([]GeoPoint, n)
	for i, row := range rows[:n] {
		points[i] = GeoPoint{Latitude: row.Latitude, Longitude: row.Longitude}
	}
	return NewCatalog(points)
}

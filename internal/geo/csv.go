package geo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
)

var (
	latHeaders = map[string]bool{"lat": true, "latitude": true}
	lonHeaders = map[string]bool{"lon": true, "lng": true, "long": true, "longitude": true}
)

// ReadCSV parses a catalog from CSV. A header row naming latitude and longitude
// columns is honored in any column order; otherwise the first two columns are
// read as latitude,longitude.
func ReadCSV(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	latCol, lonCol := 0, 1
	var points []GeoPoint
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, geoerrors.WrapValidationError(err, "read_csv", "malformed csv")
		}
		line++

		if line == 1 {
			if lat, lon, ok := headerColumns(rec); ok {
				latCol, lonCol = lat, lon
				continue
			}
		}
		if len(rec) <= latCol || len(rec) <= lonCol {
			return nil, geoerrors.NewValidationError("read_csv", "missing coordinate column").
				WithContext("line", line)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[latCol]), 64)
		if err != nil {
			return nil, geoerrors.WrapValidationError(err, "read_csv", fmt.Sprintf("bad latitude on line %d", line))
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[lonCol]), 64)
		if err != nil {
			return nil, geoerrors.WrapValidationError(err, "read_csv", fmt.Sprintf("bad longitude on line %d", line))
		}
		points = append(points, GeoPoint{Latitude: lat, Longitude: lon})
	}

	return NewCatalog(points)
}

// ReadCSVZstd parses a zstd-compressed CSV catalog.
func ReadCSVZstd(r io.Reader) (*Catalog, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, geoerrors.WrapValidationError(err, "read_csv_zstd", "invalid zstd stream")
	}
	defer dec.Close()
	return ReadCSV(dec)
}

func headerColumns(rec []string) (latCol, lonCol int, ok bool) {
	latCol, lonCol = -1, -1
	for i, field := range rec {
		name := strings.ToLower(strings.TrimSpace(field))
		switch {
		case latHeaders[name]:
			latCol = i
		case lonHeaders[name]:
			lonCol = i
		}
	}
	return latCol, lonCol, latCol >= 0 && lonCol >= 0
}

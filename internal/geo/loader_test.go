package geo

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
)

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []GeoPoint
	}{
		{
			name:  "headerless",
			input: "10,20\n10,21\n50,60\n",
			want:  []GeoPoint{{10, 20}, {10, 21}, {50, 60}},
		},
		{
			name:  "header",
			input: "lat,lon\n48.85,2.35\n",
			want:  []GeoPoint{{48.85, 2.35}},
		},
		{
			name:  "reordered header with extra columns",
			input: "id,longitude,name,latitude\n1,2.35,paris,48.85\n2,-0.12,london,51.5\n",
			want:  []GeoPoint{{48.85, 2.35}, {51.5, -0.12}},
		},
		{
			name:  "whitespace",
			input: " 1.5 , 2.5\n",
			want:  []GeoPoint{{1.5, 2.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ReadCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Equal(t, len(tt.want), c.Len())
			for i, p := range tt.want {
				assert.Equal(t, p, c.At(i))
			}
		})
	}
}

func TestReadCSV_Errors(t *testing.T) {
	for _, input := range []string{
		"10\n",
		"abc,20\n10,20\n",
		"10,xyz\n",
		"95,20\n",
	} {
		_, err := ReadCSV(strings.NewReader(input))
		assert.ErrorIs(t, err, geoerrors.ErrValidation, "input %q", input)
	}
}

func TestReadCSVZstd(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte("latitude,longitude\n35.68,139.69\n-33.87,151.21\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	c, err := ReadCSVZstd(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, GeoPoint{-33.87, 151.21}, c.At(1))
}

func TestParquetRoundTrip(t *testing.T) {
	pts := make([]GeoPoint, 10000)
	for i := range pts {
		pts[i] = GeoPoint{Latitude: float64(i%180) - 89.5, Longitude: float64(i%360) - 179.5}
	}
	src, err := NewCatalog(pts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, src))

	data := buf.Bytes()
	got, err := ReadParquet(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, src.Len(), got.Len())
	assert.Equal(t, src.Fingerprint(), got.Fingerprint())
}

func TestReadParquet_Invalid(t *testing.T) {
	data := []byte("not a parquet file")
	_, err := ReadParquet(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, geoerrors.ErrValidation)
}

func TestDecode_UnknownFormat(t *testing.T) {
	data := []byte("10,20\n")
	_, err := Decode("catalog.json", bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, geoerrors.ErrConfiguration)
}

func TestOpen_LocalFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("lat,lon\n10,20\n10,21\n50,60\n"), 0o600))

	c, err := Open(context.Background(), SourceConfig{URI: csvPath})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	pqPath := filepath.Join(dir, "catalog.parquet")
	f, err := os.Create(pqPath)
	require.NoError(t, err)
	require.NoError(t, WriteParquet(f, c))
	require.NoError(t, f.Close())

	fromParquet, err := Open(context.Background(), SourceConfig{URI: "file://" + pqPath})
	require.NoError(t, err)
	assert.Equal(t, c.Fingerprint(), fromParquet.Fingerprint())
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), SourceConfig{URI: filepath.Join(t.TempDir(), "missing.csv")})
	assert.ErrorIs(t, err, geoerrors.ErrConfiguration)

	_, err = Open(context.Background(), SourceConfig{URI: "ftp://host/catalog.csv"})
	assert.ErrorIs(t, err, geoerrors.ErrConfiguration)

	_, err = Open(context.Background(), SourceConfig{URI: "s3://bucket-only"})
	assert.ErrorIs(t, err, geoerrors.ErrConfiguration)
}

func TestCatalogQuery(t *testing.T) {
	q, err := catalogQuery("geo.catalog_points", "id")
	require.NoError(t, err)
	assert.Equal(t, "SELECT latitude, longitude FROM geo.catalog_points ORDER BY id", q)

	_, err = catalogQuery("points; DROP TABLE x", "id")
	assert.ErrorIs(t, err, geoerrors.ErrConfiguration)

	_, err = catalogQuery("points", "id desc")
	assert.ErrorIs(t, err, geoerrors.ErrConfiguration)
}

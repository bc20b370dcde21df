package sink

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketingest/internal/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("Currency", "Rate")
	require.NoError(t, tbl.Append("EUR", "0.92"))
	require.NoError(t, tbl.Append("GBP", "0.79"))
	return tbl
}

func TestFileSink_Store(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewFileSink(fsys, "/data")
	require.NoError(t, err)

	loc, err := s.Store(context.Background(), "exchange-rates/USD.csv", sampleTable(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data", "exchange-rates", "USD.csv"), loc)

	got, err := afero.ReadFile(fsys, loc)
	require.NoError(t, err)
	assert.Equal(t, "Currency,Rate\nEUR,0.92\nGBP,0.79\n", string(got))
}

func TestFileSink_Idempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewFileSink(fsys, "/data")
	require.NoError(t, err)

	ctx := context.Background()
	first, err := s.Store(ctx, "yfinance-data/AAPL.csv", sampleTable(t))
	require.NoError(t, err)
	second, err := s.Store(ctx, "yfinance-data/AAPL.csv", sampleTable(t))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	entries, err := afero.ReadDir(fsys, "/data/yfinance-data")
	require.NoError(t, err)
	require.Len(t, entries, 1, "re-storing a key must not leave extra artifacts")
	assert.Equal(t, "AAPL.csv", entries[0].Name())
}

func TestFileSink_Overwrite(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewFileSink(fsys, "/data")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.Store(ctx, "k.csv", sampleTable(t))
	require.NoError(t, err)

	updated := table.New("Currency", "Rate")
	require.NoError(t, updated.Append("JPY", "151.2"))
	loc, err := s.Store(ctx, "k.csv", updated)
	require.NoError(t, err)

	got, err := afero.ReadFile(fsys, loc)
	require.NoError(t, err)
	assert.Equal(t, "Currency,Rate\nJPY,151.2\n", string(got))
}

func TestFileSink_InvalidKeys(t *testing.T) {
	s, err := NewFileSink(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.csv", "/etc/passwd"} {
		t.Run(key, func(t *testing.T) {
			_, err := s.Store(context.Background(), key, sampleTable(t))
			require.Error(t, err)
			assert.Equal(t, KindInvalidPayload, KindOf(err))
		})
	}
}

func TestFileSink_InvalidPayload(t *testing.T) {
	s, err := NewFileSink(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	_, err = s.Store(context.Background(), "k.csv", nil)
	assert.Equal(t, KindInvalidPayload, KindOf(err))
}

func TestFileSink_ReadOnly(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/data", 0o755))

	s := &FileSink{fs: afero.NewReadOnlyFs(base), root: "/data"}

	_, err := s.Store(context.Background(), "k.csv", sampleTable(t))
	require.Error(t, err)
	assert.Equal(t, KindPermissionDenied, KindOf(err))
}

func TestFileSink_CancelledContext(t *testing.T) {
	s, err := NewFileSink(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Store(ctx, "k.csv", sampleTable(t))
	assert.Equal(t, KindUnavailable, KindOf(err))
}

package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
)

const constituentsPage = `<html><body>
<table class="wikitable" id="constituents">
<tbody>
<tr><th>Symbol</th><th>Security</th></tr>
<tr><td><a href="/aapl">AAPL</a></td><td>Apple Inc.</td></tr>
<tr><td><a href="/brk">BRK.B</a>
</td><td>Berkshire Hathaway</td></tr>
<tr><td>MSFT</td><td>Microsoft</td></tr>
</tbody>
</table>
</body></html>`

func TestParseSymbols(t *testing.T) {
	symbols, err := ParseSymbols(constituentsPage, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B", "MSFT"}, symbols)
}

func TestParseSymbols_Limit(t *testing.T) {
	symbols, err := ParseSymbols(constituentsPage, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B"}, symbols)
}

func TestParseSymbols_MissingTable(t *testing.T) {
	_, err := ParseSymbols(`<html><body><table id="other"></table></body></html>`, 10)
	require.Error(t, err)
	assert.Equal(t, fetcher.KindUpstreamFormat, fetcher.KindOf(err))
}

func TestParseSymbols_EmptyTable(t *testing.T) {
	_, err := ParseSymbols(`<table id="constituents"><tr><th>Symbol</th></tr></table>`, 10)
	require.Error(t, err)
	assert.Equal(t, fetcher.KindUpstreamFormat, fetcher.KindOf(err))
}

func TestSP500Lister_ListSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(constituentsPage))
	}))
	defer server.Close()

	lister := NewSP500Lister(server.URL+"/wiki/List_of_S%26P_500_companies", ratelimit.Unlimited())
	symbols, err := lister.ListSymbols(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "BRK-B", "MSFT"}, symbols)
}

func TestSP500Lister_ListSymbols_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewSP500Lister(server.URL, nil).ListSymbols(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, fetcher.KindNetwork, fetcher.KindOf(err))
}

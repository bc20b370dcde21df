package coinmarketcap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketingest/internal/fetcher"
	"marketingest/internal/ratelimit"
)

func listingRow(rank int, name, symbol, price string) string {
	return fmt.Sprintf(`<tr>
<td><span class="star"></span></td>
<td><p>%d</p></td>
<td><div><p>%s</p><div><p>%s</p></div></div></td>
<td><span>%s</span></td>
<td><span>1.25%%</span></td>
<td>0.5%%</td>
<td>3.1%%</td>
<td><span>$1.2T</span></td>
<td><p>$35B</p></td>
</tr>`, rank, name, symbol, price)
}

func listingPage(rows ...string) string {
	return `<html><body><table><thead><tr><th>#</th><th>Name</th></tr></thead><tbody>` +
		strings.Join(rows, "\n") +
		`</tbody></table></body></html>`
}

func TestParseListing(t *testing.T) {
	page := listingPage(
		listingRow(1, "Bitcoin", "BTC", "$64,000.12"),
		listingRow(2, "Ethereum", "ETH", "$3,100.50"),
		listingRow(3, "Tether", "USDT", "$1.00"),
	)

	tbl, err := ParseListing(page, 2)
	require.NoError(t, err)

	assert.Equal(t, Columns, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "Bitcoin", "BTC", "$64,000.12", "1.25%", "$1.2T", "$35B"}, tbl.Rows[0])
	assert.Equal(t, []string{"2", "Ethereum", "ETH", "$3,100.50", "1.25%", "$1.2T", "$35B"}, tbl.Rows[1])
}

func TestParseListing_SkipsShortRows(t *testing.T) {
	page := listingPage(
		`<tr><td colspan="3">Sponsored</td></tr>`,
		listingRow(2, "Ethereum", "ETH", "$3,100.50"),
	)

	tbl, err := ParseListing(page, 10)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "2", tbl.Rows[0][0], "rank follows row position")
	assert.Equal(t, "Ethereum", tbl.Rows[0][1])
}

func TestParseListing_CommentSplitValues(t *testing.T) {
	row := `<tr><td></td><td><p>1</p></td>
<td><div><p>Bitcoin</p><p>BTC</p></div></td>
<td><div><span>$<!-- -->67,012<!-- -->.45</span></div></td>
<td><span><span class="icon-Caret-up"></span>2.<!-- -->14<!-- -->%</span></td>
<td></td><td></td>
<td><p><span>$<!-- -->1,320,441,217,372</span></p></td>
<td><p>$<!-- -->35,124,650,181</p></td></tr>`

	tbl, err := ParseListing(listingPage(row), 10)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, []string{"1", "Bitcoin", "BTC", "$67,012.45", "2.14%", "$1,320,441,217,372", "$35,124,650,181"}, tbl.Rows[0])
}

func TestParseListing_NameFallbacks(t *testing.T) {
	row := `<tr><td></td><td></td><td><a>no paragraphs</a></td><td>$1</td><td>0%</td><td></td><td></td><td>$1M</td><td>$1K</td></tr>`

	tbl, err := ParseListing(listingPage(row), 10)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "Crypto 1", tbl.Rows[0][1])
	assert.Equal(t, "N/A", tbl.Rows[0][2])
}

func TestParseListing_NoRows(t *testing.T) {
	_, err := ParseListing(`<html><body><p>Access denied</p></body></html>`, 10)
	require.Error(t, err)
	assert.Equal(t, fetcher.KindUpstreamFormat, fetcher.KindOf(err))
}

func TestTopFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		assert.Equal(t, "en-US,en;q=0.5", r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingPage(listingRow(1, "Bitcoin", "BTC", "$64,000.12"))))
	}))
	defer server.Close()

	f := NewTopFetcher(server.URL+"/", 10, ratelimit.Unlimited())
	tbl, err := f.Fetch(context.Background(), fetcher.Item{Key: ItemKey(10)})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "BTC", tbl.Rows[0][2])
}

func TestTopFetcher_Fetch_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewTopFetcher(server.URL, 10, nil).Fetch(context.Background(), fetcher.Item{Key: ItemKey(10)})
	require.Error(t, err)
	assert.Equal(t, fetcher.KindUpstreamFormat, fetcher.KindOf(err))
}

func TestItemKey(t *testing.T) {
	assert.Equal(t, "top10", ItemKey(10))
}

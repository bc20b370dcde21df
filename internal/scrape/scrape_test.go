package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"
)

const page = `<html><body>
<table id="prices">
  <thead><tr><th>Name</th><th>Price</th></tr></thead>
  <tbody>
    <tr><td><a href="/a">Alpha</a></td><td> 1.50 </td></tr>
    <tr><td>Beta <span>Coin</span></td><td>2</td></tr>
  </tbody>
</table>
</body></html>`

func TestFindByID(t *testing.T) {
	doc, err := Parse(page)
	require.NoError(t, err)

	tbl := FindByID(doc, "prices")
	require.NotNil(t, tbl)
	assert.Equal(t, atom.Table, tbl.DataAtom)
	assert.Nil(t, FindByID(doc, "missing"))
}

func TestFindAllAndText(t *testing.T) {
	doc, err := Parse(page)
	require.NoError(t, err)

	body := Find(doc, atom.Tbody)
	require.NotNil(t, body)

	rows := Children(body, atom.Tr)
	require.Len(t, rows, 2)

	cells := Children(rows[1], atom.Td)
	require.Len(t, cells, 2)
	assert.Equal(t, "BetaCoin", Text(cells[0]))
	assert.Equal(t, "2", Text(cells[1]))

	assert.Len(t, FindAll(doc, atom.Td), 4)
	assert.Equal(t, "1.50", Text(FindAll(doc, atom.Td)[1]))
}

func TestAttr(t *testing.T) {
	doc, err := Parse(page)
	require.NoError(t, err)

	link := Find(doc, atom.A)
	require.NotNil(t, link)
	assert.Equal(t, "/a", Attr(link, "href"))
	assert.Empty(t, Attr(link, "title"))
}

func TestText_JoinsSplitNodes(t *testing.T) {
	doc, err := Parse(`<table><tbody><tr>
<td><span>$<!-- -->67,012<!-- -->.45</span></td>
<td><span class="up"></span>
  1.25<!-- -->%
</td>
<td>  <a href="/x">BRK.B</a>
</td>
</tr></tbody></table>`)
	require.NoError(t, err)

	cells := FindAll(doc, atom.Td)
	require.Len(t, cells, 3)
	assert.Equal(t, "$67,012.45", Text(cells[0]))
	assert.Equal(t, "1.25%", Text(cells[1]))
	assert.Equal(t, "BRK.B", Text(cells[2]))
}

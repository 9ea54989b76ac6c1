package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexPage = `<html><body><div class="mw-parser-output">
<table class="wikitable">
  <tr><th>#</th><th>Name</th></tr>
  <tr><td>0</td><td><a href="/wiki/Decoy">Decoy</a></td></tr>
</table>
<table class="wikitable sortable">
  <tr><th>#</th><th>Name</th><th>Chapter</th></tr>
  <tr><td>1</td><td><a href="/wiki/Monkey_D._Luffy">Monkey D. Luffy</a></td><td>1</td></tr>
  <tr><td>2</td><td><a href="/wiki/Category:Pirates">Pirates</a></td><td>1</td></tr>
  <tr><td>3</td><td><a href="/wiki/Monkey_D._Luffy">Luffy again</a></td><td>1</td></tr>
  <tr><td>4</td><td><a href="/wiki/K%C5%8Dzuki_Oden">Kōzuki Oden</a></td><td>920</td></tr>
  <tr><td>5</td><td><a href="https://example.com/wiki/Elsewhere">External</a></td><td>2</td></tr>
  <tr><td>6</td><td>No link</td><td>3</td></tr>
  <tr><td>7</td></tr>
  <tr><td>8</td><td><a href="/wiki/Nami#Appearance">Nami</a><a href="/wiki/Bell-m%C3%A8re">Bell-mère</a></td></tr>
</table>
</div></body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseIndex(t *testing.T) {
	ids := ParseIndex(parse(t, indexPage))
	assert.Equal(t, []string{"Monkey_D._Luffy", "Kōzuki_Oden", "Nami"}, ids)
}

func TestParseIndex_LuffyAndCategory(t *testing.T) {
	html := `<div class="mw-parser-output"><table class="sortable">
<tr><th>#</th><th>Name</th></tr>
<tr><td>1</td><td><a href="/wiki/Monkey_D._Luffy">Luffy</a></td></tr>
<tr><td>2</td><td><a href="/wiki/Category:Pirates">Pirates</a></td></tr>
</table></div>`

	assert.Equal(t, []string{"Monkey_D._Luffy"}, ParseIndex(parse(t, html)))
}

func TestParseIndex_MissingContent(t *testing.T) {
	ids := ParseIndex(parse(t, `<html><body><table class="sortable"></table></body></html>`))
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestParseIndex_MissingTable(t *testing.T) {
	ids := ParseIndex(parse(t, `<div class="mw-parser-output"><p>Nothing here</p></div>`))
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestIdentifierFromHref(t *testing.T) {
	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"/wiki/Monkey_D._Luffy", "Monkey_D._Luffy", true},
		{"/wiki/Roronoa_Zoro#Abilities", "Roronoa_Zoro", true},
		{"/wiki/Gol_D._Roger%27s_Crew", "Gol_D._Roger's_Crew", true},
		{"/wiki/Category:Pirates", "", false},
		{"/wiki/File%3ALuffy.png", "", false},
		{"/wiki/", "", false},
		{"/wiki/Bad%ZZ", "", false},
		{"https://onepiece.fandom.com/wiki/Nami", "", false},
		{"/index.php?title=Nami", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := IdentifierFromHref(tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wiki/List_of_Canon_Characters", r.URL.Path)
		_, _ = w.Write([]byte(indexPage))
	}))
	defer srv.Close()

	d := New(resty.New().SetTimeout(5*time.Second), srv.URL+"/wiki/List_of_Canon_Characters")
	ids := d.Discover(context.Background())

	assert.Equal(t, []string{"Monkey_D._Luffy", "Kōzuki_Oden", "Nami"}, ids)
}

func TestDiscover_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(indexPage))
	}))
	defer srv.Close()

	ids := New(resty.New(), srv.URL).Discover(context.Background())
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestDiscover_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ids := New(resty.New().SetTimeout(time.Second), url).Discover(context.Background())
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

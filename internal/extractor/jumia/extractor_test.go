package jumia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

const listingFixture = `<!DOCTYPE html>
<html><body>
<div class="catalog">
  <article class="prd">
    <a class="core" href="/samsung-galaxy-a16.html"
       data-ga4-item_brand="Samsung" data-ga4-item_category4="Smartphones">
      <img class="img" data-src="https://cdn.example.com/a16.jpg" src="data:image/gif;base64,xyz"/>
      <h3 class="name">Samsung Galaxy A16 6.7&#34; 128GB</h3>
      <div class="prc">KSh 16,999</div>
      <div class="s-prc-w">
        <div class="old">KSh 20,500</div>
        <div class="bdg _dsct _sm">17%</div>
      </div>
      <div class="rev">
        <div class="stars _s">4.4 out of 5</div>
        (213)
      </div>
      <div class="bdg">Official Store</div>
    </a>
  </article>
  <article class="prd">
    <a class="core" href="/itel-a70.html">
      <img class="img" src="/media/itel-a70.jpg"/>
      <h3 class="name">Itel A70 3GB RAM</h3>
      <div class="prc">KSh 8,499</div>
    </a>
  </article>
</div>
</body></html>`

func TestFetchPageParsesListing(t *testing.T) {
	t.Parallel()
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingFixture))
	}))
	t.Cleanup(server.Close)

	e := New(Config{BaseURL: server.URL, Timeout: 2 * time.Second}, zap.NewNop())
	records, err := e.FetchPage(context.Background(), scrape.PageRequest{
		Kind:  scrape.KindSearch,
		Query: "samsung phone",
		Page:  2,
	})
	require.NoError(t, err)
	require.Equal(t, "/catalog/?q=samsung+phone&page=2", gotPath)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, `Samsung Galaxy A16 6.7" 128GB`, first.Name)
	require.Equal(t, "KSh 16,999", first.Price)
	require.Equal(t, "KSh 20,500", first.OriginalPrice)
	require.Equal(t, "17%", first.Discount)
	require.Equal(t, "4.4/5", first.Rating)
	require.Equal(t, "213 reviews", first.ReviewsCount)
	require.Equal(t, "https://cdn.example.com/a16.jpg", first.ImageURL)
	require.Equal(t, server.URL+"/samsung-galaxy-a16.html", first.ProductURL)
	require.Equal(t, "Samsung", first.Brand)
	require.Equal(t, "Smartphones", first.Category)
	require.Contains(t, first.Badges, "Discount: 17%")
	require.Contains(t, first.Badges, "Official Store")

	second := records[1]
	require.Equal(t, "Itel A70 3GB RAM", second.Name)
	require.Equal(t, "KSh 8,499", second.Price)
	require.Equal(t, scrape.Unknown, second.OriginalPrice)
	require.Equal(t, scrape.Unknown, second.Discount)
	require.Equal(t, scrape.Unknown, second.Rating)
	require.Equal(t, server.URL+"/media/itel-a70.jpg", second.ImageURL)
	require.Equal(t, "ITEL", second.Brand, "brand falls back to the leading name token")
	require.Equal(t, "Mobile Phones", second.Category)
}

func TestFetchPageEmptyListing(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="catalog"></div></body></html>`))
	}))
	t.Cleanup(server.Close)

	e := New(Config{BaseURL: server.URL}, zap.NewNop())
	records, err := e.FetchPage(context.Background(), scrape.PageRequest{
		Kind: scrape.KindSearch, Query: "nothing", Page: 1,
	})
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestFetchPageServerError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broken", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	e := New(Config{BaseURL: server.URL}, zap.NewNop())
	_, err := e.FetchPage(context.Background(), scrape.PageRequest{
		Kind: scrape.KindSearch, Query: "phone", Page: 1,
	})
	require.Error(t, err)
}

func TestPageURLForCategory(t *testing.T) {
	t.Parallel()
	e := New(Config{BaseURL: "https://www.jumia.co.ke"}, zap.NewNop())

	first, err := e.pageURL(scrape.PageRequest{
		Kind: scrape.KindCategory, CategoryURL: "https://www.jumia.co.ke/phones/", Page: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.jumia.co.ke/phones/", first)

	plain, err := e.pageURL(scrape.PageRequest{
		Kind: scrape.KindCategory, CategoryURL: "https://www.jumia.co.ke/phones/", Page: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.jumia.co.ke/phones/?page=3", plain)

	withQuery, err := e.pageURL(scrape.PageRequest{
		Kind: scrape.KindCategory, CategoryURL: "https://www.jumia.co.ke/phones/?sort=price", Page: 2,
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.jumia.co.ke/phones/?sort=price&page=2", withQuery)

	_, err = e.pageURL(scrape.PageRequest{Kind: scrape.TaskKind("bogus")})
	require.Error(t, err)
}

func TestFactorySharesExtractor(t *testing.T) {
	t.Parallel()
	e := New(Config{}, zap.NewNop())
	f := NewFactory(e)

	first, err := f.New(context.Background())
	require.NoError(t, err)
	second, err := f.New(context.Background())
	require.NoError(t, err)

	// Closing a task's handle must not affect the shared instance.
	require.NoError(t, first.Close())
	require.NotNil(t, second)
}

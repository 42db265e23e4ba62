package headless

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

const renderedFixture = `<!DOCTYPE html>
<html><body>
<div class="listings">
  <div class="listing-item">
    <div class="product-item">
      <a href="/listing/vitron-htc-4388-digital-tv">
        <div class="product-image"><img src="https://img.kilimall.com/c/obs/vitron.jpg"/></div>
        <p class="product-title">VITRON HTC4388FS 43" Smart Android TV</p>
        <div class="product-price">KSh 18,799</div>
        <div class="rate">
          <div class="van-rate">
            <div class="van-rate__item"><i class="van-rate__icon--full"></i></div>
            <div class="van-rate__item"><i class="van-rate__icon--full"></i></div>
            <div class="van-rate__item"><i class="van-rate__icon--full"></i></div>
            <div class="van-rate__item"><i class="van-rate__icon--full"></i></div>
            <div class="van-rate__item"><i class="van-rate__icon"></i></div>
          </div>
        </div>
        <span class="reviews">(1024)</span>
        <div class="logistics-tag"><span class="tag-name">Fulfilled by Kilimall</span></div>
        <div class="mark-box"><div>Flash Sale</div><div>Top Rated</div></div>
      </a>
    </div>
  </div>
  <div class="listing-item">
    <div class="product-item">
      <a href="https://www.kilimall.co.ke/listing/generic-kettle">
        <div class="product-image"><img src="data:image/gif;base64,placeholder"/></div>
        <p class="product-title">Electric Kettle 2.2L Cordless</p>
        <div class="product-price">KSh 1,250</div>
      </a>
    </div>
  </div>
</div>
</body></html>`

func TestParseListing(t *testing.T) {
	t.Parallel()
	records, err := parseListing(renderedFixture, "https://www.kilimall.co.ke")
	require.NoError(t, err)
	require.Len(t, records, 2)

	tv := records[0]
	require.Equal(t, `VITRON HTC4388FS 43" Smart Android TV`, tv.Name)
	require.Equal(t, "KSh 18,799", tv.Price)
	require.Equal(t, "https://www.kilimall.co.ke/listing/vitron-htc-4388-digital-tv", tv.ProductURL)
	require.Equal(t, "https://img.kilimall.com/c/obs/vitron.jpg", tv.ImageURL)
	require.Equal(t, "4/5", tv.Rating)
	require.Equal(t, "1024 reviews", tv.ReviewsCount)
	require.Equal(t, "VITRON", tv.Brand)
	require.Equal(t, "Electronics", tv.Category)
	require.Equal(t, "Fulfilled by Kilimall", tv.ShippingInfo)
	require.Equal(t, []string{"Flash Sale", "Top Rated"}, tv.Badges)
	require.Equal(t, scrape.Unknown, tv.OriginalPrice)
	require.Equal(t, scrape.Unknown, tv.Discount)

	kettle := records[1]
	require.Equal(t, "Electric Kettle 2.2L Cordless", kettle.Name)
	require.Equal(t, scrape.Unknown, kettle.ImageURL, "data URI placeholder is not an image")
	require.Equal(t, scrape.Unknown, kettle.Rating)
	require.Equal(t, scrape.Unknown, kettle.ReviewsCount)
	require.Equal(t, "ELECTRIC", kettle.Brand, "falls back to the leading title word")
	require.Equal(t, scrape.Unknown, kettle.ShippingInfo)
	require.Empty(t, kettle.Badges)
}

func TestParseListingEmpty(t *testing.T) {
	t.Parallel()
	records, err := parseListing(`<html><body><div class="listings"></div></body></html>`, "https://www.kilimall.co.ke")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestBrandFromTitle(t *testing.T) {
	t.Parallel()
	require.Equal(t, "SAMSUNG", brandFromTitle("Galaxy by SAMSUNG 128GB"))
	require.Equal(t, "HISENSE", brandFromTitle("hisense 32 inch frameless tv"))
	require.Equal(t, "SOLARMAX", brandFromTitle("Solarmax 300W panel"))
	require.Equal(t, scrape.Unknown, brandFromTitle("X 1"))
	require.Equal(t, scrape.Unknown, brandFromTitle(scrape.Unknown))
	require.Equal(t, scrape.Unknown, brandFromTitle(""))
}

func TestPageURL(t *testing.T) {
	t.Parallel()
	e := &Extractor{cfg: Config{BaseURL: "https://www.kilimall.co.ke"}}

	search, err := e.pageURL(scrape.PageRequest{Kind: scrape.KindSearch, Query: "smart tv", Page: 2})
	require.NoError(t, err)
	require.Equal(t, "https://www.kilimall.co.ke/search?q=smart+tv&page=2", search)

	category, err := e.pageURL(scrape.PageRequest{
		Kind: scrape.KindCategory, CategoryURL: "https://www.kilimall.co.ke/category/televisions", Page: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.kilimall.co.ke/category/televisions", category)

	paged, err := e.pageURL(scrape.PageRequest{
		Kind: scrape.KindCategory, CategoryURL: "https://www.kilimall.co.ke/category/televisions", Page: 4,
	})
	require.NoError(t, err)
	require.Equal(t, "https://www.kilimall.co.ke/category/televisions?page=4", paged)
}

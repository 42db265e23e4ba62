package headless

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

const defaultCategory = "Electronics"

var reviewsRe = regexp.MustCompile(`\((\d+)\)`)

// knownBrands covers the house and phone brands commonly listed on the site.
// Order matters: substring matches are tried in sequence.
var knownBrands = []string{
	"VITRON", "SAMSUNG", "XIAOMI", "INFINIX", "TECNO", "ITEL", "OPPO", "REALME",
	"TAGWOOD", "HISENSE", "TCL", "SONAR", "AILYONS", "AMTEC", "GENERIC",
	"NOKIA", "HUAWEI", "APPLE", "ONEPLUS", "POCO", "BLACKVIEW", "RAMTONS",
}

// parseListing extracts records from a fully rendered listing document.
func parseListing(html, baseURL string) ([]scrape.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	var records []scrape.Record
	doc.Find(".listing-item .product-item").Each(func(_ int, card *goquery.Selection) {
		records = append(records, parseCard(card, baseURL))
	})
	return records, nil
}

func parseCard(card *goquery.Selection, baseURL string) scrape.Record {
	rec := scrape.NewRecord()
	rec.Category = defaultCategory

	if name := strings.TrimSpace(card.Find(".product-title").First().Text()); name != "" {
		rec.Name = name
	}
	if price := strings.TrimSpace(card.Find(".product-price").First().Text()); price != "" {
		rec.Price = price
	}
	if href, ok := card.Find(`a[href*="/listing/"]`).First().Attr("href"); ok {
		rec.ProductURL = absoluteURL(baseURL, href)
	}
	rec.ImageURL = imageURL(card)
	rec.Rating, rec.ReviewsCount = ratingAndReviews(card)
	rec.Brand = brandFromTitle(rec.Name)
	if shipping := strings.TrimSpace(card.Find(".logistics-tag .tag-name").First().Text()); shipping != "" {
		rec.ShippingInfo = shipping
	}
	card.Find(".mark-box > div").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			rec.Badges = append(rec.Badges, text)
		}
	})
	return rec
}

func imageURL(card *goquery.Selection) string {
	img := card.Find(".product-image img").First()
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if src == "" || strings.HasPrefix(src, "data:") {
		return scrape.Unknown
	}
	return src
}

// ratingAndReviews reads the star widget: filled icons over total items.
func ratingAndReviews(card *goquery.Selection) (string, string) {
	rating, reviews := scrape.Unknown, scrape.Unknown
	widget := card.Find(".rate .van-rate").First()
	if widget.Length() > 0 {
		total := widget.Find(".van-rate__item").Length()
		filled := widget.Find(".van-rate__icon--full").Length()
		if total > 0 {
			rating = fmt.Sprintf("%d/%d", filled, total)
		}
	}
	if m := reviewsRe.FindStringSubmatch(card.Find(".reviews").First().Text()); m != nil {
		reviews = m[1] + " reviews"
	}
	return rating, reviews
}

// brandFromTitle scans the title for a known brand, then falls back to the
// leading word when it looks like a name rather than a stray character.
func brandFromTitle(title string) string {
	if title == scrape.Unknown || title == "" {
		return scrape.Unknown
	}
	upper := strings.ToUpper(title)
	for _, brand := range knownBrands {
		if strings.Contains(upper, brand) {
			return brand
		}
	}
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return scrape.Unknown
	}
	first := strings.ToUpper(fields[0])
	if len(first) > 1 {
		return first
	}
	return scrape.Unknown
}

func absoluteURL(baseURL, ref string) string {
	if ref == "" {
		return scrape.Unknown
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

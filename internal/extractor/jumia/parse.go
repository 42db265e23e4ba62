package jumia

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Dev-pucci/webscraping-app/internal/scrape"
)

const defaultCategory = "Mobile Phones"

var (
	ratingRe   = regexp.MustCompile(`([\d.]+)\s+out\s+of\s+5`)
	reviewsRe  = regexp.MustCompile(`\((\d+)\)`)
	freeShipRe = regexp.MustCompile(`(?i)free.*ship`)
	officialRe = regexp.MustCompile(`(?i)official.*store`)
	verifiedRe = regexp.MustCompile(`(?i)verified`)
	popularRe  = regexp.MustCompile(`(?i)best.*seller|popular`)
)

var knownBrands = map[string]struct{}{
	"SAMSUNG": {}, "XIAOMI": {}, "INFINIX": {}, "TECNO": {}, "ITEL": {},
	"OPPO": {}, "REALME": {}, "NOKIA": {}, "HUAWEI": {}, "APPLE": {},
	"ONEPLUS": {}, "VILLAON": {}, "OALE": {}, "POCO": {}, "BLACKVIEW": {},
	"FREEYOND": {}, "MAXFONE": {},
}

// parseCard extracts one record from a product card selection. Missing
// fields keep the Unknown marker rather than an empty string.
func parseCard(card *goquery.Selection, baseURL string) scrape.Record {
	rec := scrape.NewRecord()

	if name := strings.TrimSpace(card.Find("h3.name").First().Text()); name != "" {
		rec.Name = name
	}

	link := card.Find("a.core").First()
	if href, ok := link.Attr("href"); ok {
		rec.ProductURL = absoluteURL(baseURL, href)
	}

	if price := strings.TrimSpace(card.Find("div.prc").First().Text()); price != "" {
		rec.Price = price
	}

	priceWrap := card.Find("div.s-prc-w").First()
	if old := strings.TrimSpace(priceWrap.Find("div.old").First().Text()); old != "" {
		rec.OriginalPrice = old
	}
	if discount := strings.TrimSpace(priceWrap.Find("div.bdg._dsct._sm").First().Text()); discount != "" {
		rec.Discount = discount
	}

	rev := card.Find("div.rev").First()
	if rev.Length() > 0 {
		if m := ratingRe.FindStringSubmatch(rev.Find("div.stars._s").First().Text()); m != nil {
			rec.Rating = m[1] + "/5"
		}
		if m := reviewsRe.FindStringSubmatch(rev.Text()); m != nil {
			rec.ReviewsCount = m[1] + " reviews"
		}
	}

	rec.ImageURL = imageURL(card, baseURL)
	rec.Brand = brand(link, rec.Name)

	rec.Category = defaultCategory
	if cat, ok := link.Attr("data-ga4-item_category4"); ok && cat != "" {
		rec.Category = cat
	}

	cardText := card.Text()
	if freeShipRe.MatchString(cardText) {
		rec.ShippingInfo = "Free shipping"
	}
	rec.Badges = badges(card, cardText, rec.Discount)

	return rec
}

func imageURL(card *goquery.Selection, baseURL string) string {
	img := card.Find("img.img").First()
	if img.Length() == 0 {
		return scrape.Unknown
	}
	src, ok := img.Attr("data-src")
	if !ok || src == "" {
		src, _ = img.Attr("src")
	}
	// A data: URI means the lazy loader has not fired; only data-src holds
	// the real image then.
	if strings.HasPrefix(src, "data:image") {
		src, _ = img.Attr("data-src")
	}
	if src == "" || strings.HasPrefix(src, "data:image") {
		return scrape.Unknown
	}
	if !strings.HasPrefix(src, "http") {
		return absoluteURL(baseURL, src)
	}
	return src
}

func brand(link *goquery.Selection, name string) string {
	if b, ok := link.Attr("data-ga4-item_brand"); ok && b != "" {
		return b
	}
	return brandFromName(name)
}

// brandFromName matches the leading token of the product name against the
// known phone brands sold on the site.
func brandFromName(name string) string {
	if name == scrape.Unknown {
		return scrape.Unknown
	}
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return scrape.Unknown
	}
	candidate := strings.ToUpper(fields[0])
	if _, ok := knownBrands[candidate]; ok {
		return candidate
	}
	return scrape.Unknown
}

func badges(card *goquery.Selection, cardText, discount string) []string {
	out := []string{}
	if discount != scrape.Unknown {
		out = append(out, "Discount: "+discount)
	}
	card.Find("div.bdg").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" && text != discount {
			out = append(out, text)
		}
	})
	if officialRe.MatchString(cardText) {
		out = append(out, "Official Store")
	}
	if verifiedRe.MatchString(cardText) {
		out = append(out, "Verified")
	}
	if popularRe.MatchString(cardText) {
		out = append(out, "Best Seller")
	}
	return out
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

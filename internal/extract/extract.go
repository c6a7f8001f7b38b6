// Package extract reads listing rows and product details out of rendered
// catalog pages.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/buitanphat247/crawl-data-thegioididong/internal/browser"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/category"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/models"
	"github.com/buitanphat247/crawl-data-thegioididong/internal/normalize"
)

// Extractor parses pages of one category. Missing elements produce empty
// values, never errors; only an unreadable page is an error.
type Extractor struct {
	cat  *category.Category
	base *url.URL
}

func New(c *category.Category) (*Extractor, error) {
	base, err := url.Parse(c.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url for %s: %w", c.Name, err)
	}
	base.Path, base.RawQuery, base.Fragment = "", "", ""
	return &Extractor{cat: c, base: base}, nil
}

func (e *Extractor) ExtractListing(ctx context.Context, s browser.Session) ([]models.ListingRecord, error) {
	html, err := s.Content(ctx)
	if err != nil {
		return nil, err
	}
	return e.ParseListing(html)
}

func (e *Extractor) ExtractDetail(ctx context.Context, s browser.Session) (*models.DetailRecord, error) {
	html, err := s.Content(ctx)
	if err != nil {
		return nil, err
	}
	return e.ParseDetail(html)
}

// ParseListing returns one record per listing item that has a link, a name
// and a price, in page order. Free-text fields are left raw.
func (e *Extractor) ParseListing(html string) ([]models.ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var records []models.ListingRecord
	doc.Find(e.cat.ListingItem).Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a.main-contain").First()
		title := item.Find("h3").First()
		price := item.Find("strong.price").First()
		href, hasHref := link.Attr("href")
		if link.Length() == 0 || !hasHref || title.Length() == 0 || price.Length() == 0 {
			return
		}

		records = append(records, models.ListingRecord{
			ID:          attr(item, "data-id"),
			ProductCode: attr(item, "data-productcode"),
			Name:        raw(title),
			Brand:       normalize.Scalar(attr(link, "data-brand")),
			Price:       raw(price),
			PriceOld:    raw(item.Find("p.price-old").First()),
			Discount:    raw(item.Find("span.percent").First()),
			Image:       imageSource(item.Find("img.thumb").First()),
			Link:        e.absolute(href),
			Rating:      raw(item.Find("b").First()),
			Sold:        raw(item.Find("span").First()),
			Gift:        raw(item.Find("p.item-gift").First()),
			Color:       normalize.Scalar(attr(link, "data-color")),
			DataPrice:   attr(item, "data-price"),
			Compare:     raw(item.Find(".item-compare").First()),
			Label:       raw(item.Find(".lb-tragop").First()),
			DataIndex:   attr(item, "data-index"),
			DataPos:     attr(item, "data-pos"),
		})
	})

	return records, nil
}

// ParseDetail extracts the product detail record. Specification values are
// left raw for the caller to normalize.
func (e *Extractor) ParseDetail(html string) (*models.DetailRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	sel := e.cat.Detail
	return &models.DetailRecord{
		Title:          firstText(doc.Selection, sel.Title),
		Price:          firstText(doc.Selection, sel.Price),
		PriceOld:       firstText(doc.Selection, sel.PriceOld),
		Discount:       firstText(doc.Selection, sel.Discount),
		Label:          firstText(doc.Selection, sel.Label),
		Rating:         firstText(doc.Selection, sel.Rating),
		Sold:           firstText(doc.Selection, sel.Sold),
		Specifications: specifications(doc.Selection, sel.SpecGroups, sel.SpecItems),
		StorageOptions: storageOptions(doc.Selection, sel.StorageOptions, sel.StorageExclude),
		ColorOptions:   colorOptions(doc.Selection, sel.ColorOptions),
		Images:         images(doc.Selection, sel.Images),
	}, nil
}

func (e *Extractor) absolute(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return e.base.String() + href
	}
	return e.base.ResolveReference(ref).String()
}

func specifications(doc *goquery.Selection, groupSelectors, itemSelectors []string) []models.SpecGroup {
	groups := []models.SpecGroup{}

	firstMatch(doc, groupSelectors).Each(func(_ int, group *goquery.Selection) {
		name := firstText(group, []string{"h3", "h4"})
		if name == "" {
			return
		}

		var items []models.SpecItem
		firstMatch(group, itemSelectors).Each(func(_ int, li *goquery.Selection) {
			label := firstText(li, []string{"aside:first-child"})
			value := firstText(li, []string{"aside:last-child"})

			// Rows without aside cells fall back to strong/span pairs or the
			// text after the label. A single span then reads as both cells.
			fallback := label == "" || value == ""
			if label == "" {
				label = firstText(li, []string{"strong", "span:first-child"})
			}
			if value == "" {
				value = firstText(li, []string{"span:last-child"})
			}
			if value == "" && label != "" {
				value = strings.TrimSpace(strings.Replace(li.Text(), label, "", 1))
			}
			if label == "" || value == "" || (fallback && label == value) {
				return
			}
			items = append(items, models.SpecItem{Label: label, Value: normalize.Scalar(value)})
		})

		if len(items) > 0 {
			groups = append(groups, models.SpecGroup{Category: name, Items: items})
		}
	})

	return groups
}

func storageOptions(doc *goquery.Selection, selector string, exclude []string) []models.StorageOption {
	options := []models.StorageOption{}
	if selector == "" {
		return options
	}

	doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if text == "" {
			return
		}
		for _, x := range exclude {
			if strings.Contains(text, x) {
				return
			}
		}
		options = append(options, models.StorageOption{Option: text, IsActive: item.HasClass("act")})
	})

	return options
}

func colorOptions(doc *goquery.Selection, selectors []string) []models.ColorOption {
	colors := []models.ColorOption{}

	firstMatch(doc, selectors).Each(func(_ int, item *goquery.Selection) {
		name := strings.TrimSpace(item.Text())
		if name == "" {
			return
		}
		colors = append(colors, models.ColorOption{
			Name:        name,
			IsActive:    item.HasClass("act") || item.HasClass("active"),
			ColorCode:   attr(item, "data-color"),
			ProductCode: attr(item, "data-code"),
			ColorStyle:  attr(item.Find("i").First(), "style"),
		})
	})

	return colors
}

// images collects every image under the given gallery selectors, in order,
// without duplicates.
func images(doc *goquery.Selection, selectors []string) []string {
	seen := make(map[string]bool)
	out := []string{}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, img *goquery.Selection) {
			src := imageSource(img)
			if src == "" || seen[src] {
				return
			}
			seen[src] = true
			out = append(out, src)
		})
	}

	return out
}

// imageSource prefers the real image over lazy-load placeholders.
func imageSource(img *goquery.Selection) string {
	for _, name := range []string{"src", "data-src", "data-original"} {
		v := strings.TrimSpace(attr(img, name))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func firstMatch(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		if found := s.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return s.Slice(0, 0)
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(s.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func raw(s *goquery.Selection) normalize.Value {
	if s.Length() == 0 {
		return normalize.Scalar("")
	}
	return normalize.Scalar(s.Text())
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}

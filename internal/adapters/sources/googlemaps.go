package sources

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/httpfetch"
	"sitescan/internal/analysis"
	"sitescan/internal/domain"
)

const (
	googleAnonymous = "Anonymous Google User"
	googleTitle     = "Google review"
)

// Browser hands out isolated, JavaScript capable sessions.
type Browser interface {
	Open(ctx context.Context) (Page, error)
}

// Page is one browser session. Close must be called exactly once.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Hrefs(ctx context.Context, selector string) ([]string, error)
	Click(ctx context.Context, selector string) (bool, error)
	ClickText(ctx context.Context, tag, text string) (bool, error)
	// ScrollToBottom scrolls the first element matching selector, or the window when selector is "".
	ScrollToBottom(ctx context.Context, selector string) (bool, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

type GoogleMapsConfig struct {
	BaseURL     string // https://www.google.com
	MaxReviews  int
	Scrolls     int
	Settle      time.Duration // wait after navigation and clicks
	ScrollPause time.Duration
}

// GoogleMaps reads place reviews from a rendered Google Maps page.
type GoogleMaps struct {
	res     *Resources
	browser Browser
	cfg     GoogleMapsConfig
}

func NewGoogleMaps(res *Resources, b Browser, cfg GoogleMapsConfig) *GoogleMaps {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.google.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxReviews <= 0 {
		cfg.MaxReviews = 30
	}
	if cfg.Scrolls <= 0 {
		cfg.Scrolls = 5
	}
	return &GoogleMaps{res: res, browser: b, cfg: cfg}
}

func (a *GoogleMaps) Name() string { return domain.SourceGoogleReviews }

func (a *GoogleMaps) Scrape(ctx context.Context, host, siteName string) []domain.Complaint {
	return a.res.fetchOnce(ctx, a.Name(), host, siteName, func(ctx context.Context) []domain.Complaint {
		return a.fetch(ctx, host, siteName)
	})
}

func (a *GoogleMaps) fetch(ctx context.Context, host, siteName string) []domain.Complaint {
	page, err := a.browser.Open(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", a.Name()).Msg("browser session unavailable")
		return nil
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Str("source", a.Name()).Msg("browser session close failed")
		}
	}()

	placeURL := a.findPlace(ctx, page, host, siteName)
	a.openReviewsTab(ctx, page)
	a.loadMore(ctx, page)

	html, err := page.HTML(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", a.Name()).Msg("reading rendered page failed")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Warn().Err(err).Str("source", a.Name()).Msg("rendered page parse failed")
		return nil
	}
	return parseMapsReviews(doc.Selection, placeURL, a.cfg.MaxReviews)
}

var mapsPlaceLinks = []string{
	"a[href*='/maps/place/']",
	"div[data-result-index='0'] a",
	"div[class*='result'] a[href*='place']",
}

// findPlace searches Maps and moves to the first place page it can find.
// It falls back to the current URL when that already is a place page, then to the search URL.
func (a *GoogleMaps) findPlace(ctx context.Context, page Page, host, siteName string) string {
	searchURL := a.cfg.BaseURL + "/maps/search/" + url.QueryEscape(strings.TrimSpace(siteName+" "+host))
	if err := page.Navigate(ctx, searchURL); err != nil {
		log.Warn().Err(err).Str("source", a.Name()).Str("url", searchURL).Msg("maps search failed")
		return searchURL
	}
	httpfetch.Sleep(ctx, a.cfg.Settle)

	for _, sel := range mapsPlaceLinks {
		hrefs, err := page.Hrefs(ctx, sel)
		if err != nil {
			continue
		}
		for _, h := range hrefs {
			if !strings.Contains(h, "/maps/place/") {
				continue
			}
			if err := page.Navigate(ctx, h); err != nil {
				log.Warn().Err(err).Str("source", a.Name()).Str("url", h).Msg("place page navigation failed")
			}
			httpfetch.Sleep(ctx, a.cfg.Settle)
			return h
		}
	}
	if cur, err := page.Location(ctx); err == nil && strings.Contains(cur, "/maps/place/") {
		return cur
	}
	log.Info().Str("source", a.Name()).Str("domain", host).Msg("no place page found, using search results")
	return searchURL
}

var (
	mapsReviewTabs = []string{
		"button[data-tab-index='1']",
		"button[data-value='Yorumlar']",
		"button[data-value='Reviews']",
		"button[aria-label*='Yorumlar' i]",
		"button[aria-label*='Reviews' i]",
	}
	mapsReviewTabTexts = []string{"Yorumlar", "Reviews"}
	mapsScrollBoxes    = []string{
		"div[role='main']",
		"div[class*='scrollable']",
		"div[class*='reviews']",
		"div[id*='pane']",
	}
)

// openReviewsTab is best effort: the place page may already show reviews.
func (a *GoogleMaps) openReviewsTab(ctx context.Context, page Page) {
	for _, sel := range mapsReviewTabs {
		if ok, err := page.Click(ctx, sel); err == nil && ok {
			httpfetch.Sleep(ctx, a.cfg.Settle)
			return
		}
	}
	for _, txt := range mapsReviewTabTexts {
		if ok, err := page.ClickText(ctx, "button", txt); err == nil && ok {
			httpfetch.Sleep(ctx, a.cfg.Settle)
			return
		}
	}
	log.Debug().Str("source", a.Name()).Msg("reviews tab not found")
}

// loadMore scrolls the review pane (or the window) to trigger lazy loading.
func (a *GoogleMaps) loadMore(ctx context.Context, page Page) {
	box := ""
	for _, sel := range mapsScrollBoxes {
		if ok, err := page.ScrollToBottom(ctx, sel); err == nil && ok {
			box = sel
			break
		}
	}
	for i := 0; i < a.cfg.Scrolls; i++ {
		if _, err := page.ScrollToBottom(ctx, box); err != nil {
			log.Debug().Err(err).Str("source", a.Name()).Msg("scroll failed")
			return
		}
		if !httpfetch.Sleep(ctx, a.cfg.ScrollPause) {
			return
		}
	}
}

var (
	mapsContainers = []nodePick{
		css("div[data-review-id]"),
		css("div.jftiEf"),
		css("div.MyEned"),
		css("div[class*='review']"),
		css("div[class*='comment']"),
	}
	mapsText = []textPick{
		textOf(css("span.wiI7pd"), 11),
		textOf(css("span.MyEned"), 11),
		textOf(css("span[class*='fontBodyMedium']"), 11),
		textOf(css("div[class*='MyEned']"), 11),
		textOf(css("span[class*='wiI7pd']"), 11),
		mapsSpanText,
		mapsWholeText,
	}
	mapsAuthor = textOf(css("div[class*='d4r55'], div[class*='author']"), 1)
	mapsDate   = textOf(css("span[class*='rsqaWe'], span[class*='date']"), 1)
	digitsRe   = regexp.MustCompile(`\d+`)
)

// mapsSpanText takes the first span whose text looks like a review body.
func mapsSpanText(s *goquery.Selection) (string, bool) {
	var out string
	s.Find("span").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		t := analysis.CleanText(n.Text())
		if l := utf8.RuneCountInString(t); l > 20 && l < 1000 {
			out = t
			return false
		}
		return true
	})
	return out, out != ""
}

// mapsWholeText is the last resort: the element text, cut to three lines when huge.
func mapsWholeText(s *goquery.Selection) (string, bool) {
	raw := strings.TrimSpace(s.Text())
	if utf8.RuneCountInString(raw) > 1000 {
		var lines []string
		for _, l := range strings.Split(raw, "\n") {
			if l = analysis.CleanText(l); l != "" {
				lines = append(lines, l)
			}
			if len(lines) == 3 {
				break
			}
		}
		raw = strings.Join(lines, "\n")
	} else {
		raw = analysis.CleanText(raw)
	}
	return raw, raw != ""
}

func mapsRating(s *goquery.Selection) *int {
	var out *int
	s.Find("span[aria-label]").EachWithBreak(func(_ int, n *goquery.Selection) bool {
		label := strings.ToLower(n.AttrOr("aria-label", ""))
		if !strings.Contains(label, "star") && !strings.Contains(label, "yıldız") {
			return true
		}
		if m := digitsRe.FindString(label); m != "" {
			if v, err := strconv.Atoi(m); err == nil {
				out = &v
				return false
			}
		}
		return true
	})
	return out
}

func parseMapsReviews(doc *goquery.Selection, placeURL string, limit int) []domain.Complaint {
	elems := firstNodes(doc, mapsContainers...)
	if elems.Length() == 0 {
		return scriptReviews(doc, placeURL, limit)
	}
	var out []domain.Complaint
	elems.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		content, _ := firstText(el, mapsText...)
		if utf8.RuneCountInString(content) < minReviewRunes {
			return true
		}
		author, ok := mapsAuthor(el)
		if !ok {
			author = googleAnonymous
		}
		var date string
		if v, ok := mapsDate(el); ok {
			date = v
		}
		rating := mapsRating(el)
		out = append(out, domain.Complaint{
			Title:     googleTitle,
			Content:   analysis.Truncate(content, analysis.MaxContentRunes),
			Author:    author,
			Date:      analysis.ParseDate(date),
			Rating:    rating,
			Sentiment: analysis.ApplyRating(analysis.ClassifySentiment(content), rating),
			URL:       placeURL,
		})
		return len(out) < limit
	})
	return out
}

var (
	scriptReviewRe = regexp.MustCompile(`"reviewText":\s*"([^"]+)"`)
	scriptRatingRe = regexp.MustCompile(`"rating":\s*(\d+)`)
	scriptAuthorRe = regexp.MustCompile(`"authorName":\s*"([^"]+)"`)
)

// scriptReviews pulls reviews out of embedded page data. Text, rating and
// author matches are paired by position.
func scriptReviews(doc *goquery.Selection, placeURL string, limit int) []domain.Complaint {
	var out []domain.Complaint
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.Text()
		if !strings.Contains(src, `"reviews"`) {
			return true
		}
		texts := scriptReviewRe.FindAllStringSubmatch(src, -1)
		ratings := scriptRatingRe.FindAllStringSubmatch(src, -1)
		authors := scriptAuthorRe.FindAllStringSubmatch(src, -1)
		for i, m := range texts {
			if len(out) >= limit {
				return false
			}
			content := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(content) <= minReviewRunes {
				continue
			}
			var rating *int
			if i < len(ratings) {
				if v, err := strconv.Atoi(ratings[i][1]); err == nil {
					rating = &v
				}
			}
			author := googleAnonymous
			if i < len(authors) {
				author = authors[i][1]
			}
			out = append(out, domain.Complaint{
				Title:     googleTitle,
				Content:   analysis.Truncate(content, analysis.MaxContentRunes),
				Author:    author,
				Rating:    rating,
				Sentiment: analysis.ApplyRating(analysis.ClassifySentiment(content), rating),
				URL:       placeURL,
			})
		}
		return len(out) < limit
	})
	return out
}

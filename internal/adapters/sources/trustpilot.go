package sources

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/httpfetch"
	"sitescan/internal/analysis"
	"sitescan/internal/domain"
)

const (
	trustpilotAnonymous = "Anonymous Trustpilot User"
	trustpilotPerPage   = 20
	minReviewRunes      = 10
)

type TrustpilotConfig struct {
	BaseURL  string // https://www.trustpilot.com
	LocalURL string // https://tr.trustpilot.com
	Policy   CandidatePolicy
}

// Trustpilot probes a handful of company page URL shapes per search term.
type Trustpilot struct {
	res  *Resources
	http Fetcher
	cfg  TrustpilotConfig
}

func NewTrustpilot(res *Resources, f Fetcher, cfg TrustpilotConfig) *Trustpilot {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.trustpilot.com"
	}
	if cfg.LocalURL == "" {
		cfg.LocalURL = "https://tr.trustpilot.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.LocalURL = strings.TrimRight(cfg.LocalURL, "/")
	return &Trustpilot{res: res, http: f, cfg: cfg}
}

func (a *Trustpilot) Name() string { return domain.SourceTrustpilot }

func (a *Trustpilot) Scrape(ctx context.Context, host, siteName string) []domain.Complaint {
	return a.res.fetchOnce(ctx, a.Name(), host, siteName, func(ctx context.Context) []domain.Complaint {
		return pickCandidate(ctx, a.cfg.Policy, searchTerms(host, siteName), func(term string) []domain.Complaint {
			return a.scrapeTerm(ctx, term)
		})
	})
}

// searchTerms: site name, domain stem, domain without its generic TLD.
func searchTerms(host, siteName string) []string {
	trimmed := strings.NewReplacer(".com", "", ".net", "", ".org", "").Replace(host)
	var out []string
	for _, t := range uniqueNonEmpty(strings.ToLower(strings.TrimSpace(siteName)), stem(host), trimmed) {
		if utf8.RuneCountInString(t) >= 3 {
			out = append(out, t)
		}
	}
	return out
}

func (a *Trustpilot) variants(term string) []string {
	q := url.PathEscape(term)
	return []string{
		a.cfg.BaseURL + "/review/" + q + ".com.tr",
		a.cfg.BaseURL + "/review/" + q + ".com",
		a.cfg.BaseURL + "/review/" + q,
		a.cfg.LocalURL + "/review/" + q + ".com.tr",
	}
}

// scrapeTerm returns the reviews of the first URL variant that has any.
func (a *Trustpilot) scrapeTerm(ctx context.Context, term string) []domain.Complaint {
	for _, u := range a.variants(term) {
		if ctx.Err() != nil {
			return nil
		}
		body, err := a.http.Get(ctx, u)
		if err != nil {
			if !errors.Is(err, httpfetch.ErrNotFound) {
				log.Debug().Err(err).Str("source", a.Name()).Str("url", u).Msg("variant fetch failed")
			}
			continue
		}
		doc, err := parseDoc(body)
		if err != nil {
			log.Debug().Err(err).Str("source", a.Name()).Str("url", u).Msg("variant parse failed")
			continue
		}
		if recs := a.parsePage(doc.Selection, term, u); len(recs) > 0 {
			return recs
		}
	}
	return nil
}

var (
	tpContainers = []nodePick{
		classLike("article", regexp.MustCompile(`(?i)review|card`)),
		css("div[data-review-id]"),
		classLike("section", regexp.MustCompile(`(?i)review`)),
	}
	tpContent = []textPick{
		textOf(classLike("p", regexp.MustCompile(`(?i)review|text|body`)), 1),
		textOf(classLike("div", regexp.MustCompile(`(?i)review-text|content`)), 1),
		textOf(func(s *goquery.Selection) *goquery.Selection { return s.Find("p").First() }, 1),
	}
	tpTitle = []textPick{
		textOf(css("h2"), 1),
		textOf(css("h3"), 1),
		textOf(classLike("a", regexp.MustCompile(`(?i)title`)), 1),
	}
	tpAuthor = []textPick{
		textOf(classLike("span", regexp.MustCompile(`(?i)author|consumer|user`)), 1),
		textOf(classLike("div", regexp.MustCompile(`(?i)consumer`)), 1),
	}
	tpDate = []textPick{
		attrOrText(css("time"), "datetime", "title"),
		attrOrText(classLike("span", regexp.MustCompile(`(?i)date|published`)), "datetime", "title"),
	}
	tpRatingBox  = classLike("div", regexp.MustCompile(`(?i)star|rating`))
	tpStarImg    = regexp.MustCompile(`(?i)star|yıldız`)
	tpStarSpan   = classLike("span", regexp.MustCompile(`(?i)star`))
	tpReviewLink = css(`a[href*="/review/"]`)
	tpReply      = classLike("div", regexp.MustCompile(`(?i)company|response|reply`))
)

func (a *Trustpilot) parsePage(doc *goquery.Selection, term, pageURL string) []domain.Complaint {
	reviews := firstNodes(doc, tpContainers...)
	if reviews.Length() > trustpilotPerPage {
		reviews = reviews.Slice(0, trustpilotPerPage)
	}
	var out []domain.Complaint
	reviews.Each(func(_ int, rv *goquery.Selection) {
		if c, ok := a.parseReview(rv, term, pageURL); ok {
			out = append(out, c)
		}
	})
	return out
}

func (a *Trustpilot) parseReview(rv *goquery.Selection, term, pageURL string) (domain.Complaint, bool) {
	content, _ := firstText(rv, tpContent...)
	if len([]rune(content)) < minReviewRunes {
		return domain.Complaint{}, false
	}
	title, ok := firstText(rv, tpTitle...)
	if !ok {
		title = term + " Trustpilot review"
	}
	author, ok := firstText(rv, tpAuthor...)
	if !ok {
		author = trustpilotAnonymous
	}
	var date string
	if v, ok := firstText(rv, tpDate...); ok {
		date = v
	}

	u := pageURL
	if href, ok := attrOf(tpReviewLink, "href")(rv); ok {
		if abs := absURL(a.cfg.BaseURL, href); abs != "" {
			u = abs
		}
	}

	rating := trustpilotRating(rv)
	return domain.Complaint{
		Title:      title,
		Content:    analysis.Truncate(content, analysis.MaxContentRunes),
		Author:     author,
		Date:       analysis.ParseDate(date),
		Rating:     rating,
		Sentiment:  analysis.ApplyRating(analysis.ClassifySentiment(title+" "+content), rating),
		URL:        u,
		IsResolved: analysis.DetectResolved(tpReply(rv).Length() > 0, ""),
	}, true
}

// trustpilotRating counts filled stars, falling back to a numeric data attribute.
func trustpilotRating(rv *goquery.Selection) *int {
	if box := tpRatingBox(rv).First(); box.Length() > 0 {
		stars := box.Find("img").FilterFunction(func(_ int, n *goquery.Selection) bool {
			return tpStarImg.MatchString(n.AttrOr("alt", ""))
		})
		if stars.Length() == 0 {
			stars = tpStarSpan(box)
		}
		filled := 0
		stars.Each(func(_ int, n *goquery.Selection) {
			cls := n.AttrOr("class", "")
			if strings.Contains(cls, "filled") || strings.Contains(cls, "active") {
				filled++
			}
		})
		if filled > 0 {
			return &filled
		}
	}
	for _, attr := range []string{"data-review-rating", "data-rating"} {
		if v, ok := rv.Attr(attr); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				return &n
			}
		}
	}
	return nil
}

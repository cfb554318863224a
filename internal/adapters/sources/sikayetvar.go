package sources

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/httpfetch"
	"sitescan/internal/analysis"
	"sitescan/internal/domain"
)

const sikayetvarAnonymous = "Anonymous Sikayetvar User"

type SikayetvarConfig struct {
	BaseURL  string // https://www.sikayetvar.com
	MaxPages int
	Policy   CandidatePolicy
}

// Sikayetvar reads the paginated complaint listing of a company page.
type Sikayetvar struct {
	res  *Resources
	http Fetcher
	cfg  SikayetvarConfig
}

func NewSikayetvar(res *Resources, f Fetcher, cfg SikayetvarConfig) *Sikayetvar {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.sikayetvar.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	return &Sikayetvar{res: res, http: f, cfg: cfg}
}

func (a *Sikayetvar) Name() string { return domain.SourceSikayetvar }

func (a *Sikayetvar) Scrape(ctx context.Context, host, siteName string) []domain.Complaint {
	return a.res.fetchOnce(ctx, a.Name(), host, siteName, func(ctx context.Context) []domain.Complaint {
		slugs := uniqueNonEmpty(slugify(siteName), slugify(stem(host)))
		return pickCandidate(ctx, a.cfg.Policy, slugs, func(slug string) []domain.Complaint {
			return a.scrapeSlug(ctx, slug)
		})
	})
}

var (
	svTitle  = css("h2.complaint-title a")
	svDesc   = css("section p.complaint-description.js-replace-to-link")
	svAuthor = classLike("a", regexp.MustCompile(`user|author|writer`))
	svDate   = []textPick{
		attrOrText(css("time"), "datetime", "title"),
		attrOrText(classLike("span", regexp.MustCompile(`date|time`)), "datetime", "title"),
	}
	svResolvedBadge = classLike("span", regexp.MustCompile(`(?i)resolved|cozuldu|solved|success`))
)

func (a *Sikayetvar) scrapeSlug(ctx context.Context, slug string) []domain.Complaint {
	var out []domain.Complaint
	base := a.cfg.BaseURL + "/" + slug
	for page := 1; page <= a.cfg.MaxPages; page++ {
		u := base
		if page > 1 {
			u = base + "?page=" + strconv.Itoa(page)
		}
		body, err := a.http.Get(ctx, u)
		if err != nil {
			if !errors.Is(err, httpfetch.ErrNotFound) {
				log.Warn().Err(err).Str("source", a.Name()).Str("url", u).Msg("page fetch failed")
			}
			break
		}
		doc, err := parseDoc(body)
		if err != nil {
			log.Warn().Err(err).Str("source", a.Name()).Str("url", u).Msg("page parse failed")
			break
		}
		articles := doc.Find("article.card-v2")
		if articles.Length() == 0 {
			break
		}
		articles.Each(func(_ int, art *goquery.Selection) {
			if c, ok := a.parseArticle(art, base); ok {
				out = append(out, c)
			}
		})
	}
	return out
}

func (a *Sikayetvar) parseArticle(art *goquery.Selection, pageURL string) (domain.Complaint, bool) {
	link := svTitle(art).First()
	title := analysis.CleanText(link.Text())
	if title == "" {
		return domain.Complaint{}, false
	}
	desc := analysis.CleanText(svDesc(art).First().Text())

	author, ok := textOf(svAuthor, 1)(art)
	if !ok {
		author = sikayetvarAnonymous
	}

	var date string
	if v, ok := firstText(art, svDate...); ok {
		date = v
	}

	u := pageURL
	if href := absURL(a.cfg.BaseURL, link.AttrOr("href", "")); href != "" {
		u = href
	}

	full := title + " " + desc
	return domain.Complaint{
		Title:      title,
		Content:    analysis.Truncate(desc, analysis.MaxContentRunes),
		Author:     author,
		Date:       analysis.ParseDate(date),
		Sentiment:  analysis.ClassifySentiment(full),
		URL:        u,
		IsResolved: analysis.DetectResolved(svResolvedBadge(art).Length() > 0, full),
	}, true
}

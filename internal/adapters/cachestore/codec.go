package cachestore

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sitescan/internal/analysis"
	"sitescan/internal/domain"
)

const (
	headerRule = "============================================================"
	recordRule = "------------------------------------------------------------"
	notSet     = "N/A"
)

var (
	markerRe = regexp.MustCompile(`^\[(\d+)\] ?(.*)$`)
	fieldRe  = regexp.MustCompile(`^(Author|Date|Sentiment|URL|Rating|Resolved|Content):(.*)$`)
)

// Key builds the storage key for a (domain, source) pair.
func Key(host, source string) string {
	return sanitize(host) + "_" + sanitize(source)
}

var unsafeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func sanitize(s string) string { return unsafeRe.ReplaceAllString(strings.ToLower(s), "_") }

// Encode renders records in the human readable cache layout.
func Encode(host, source, siteName string, records []domain.Complaint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Records - %s (%s)\n", displaySource(source), host, siteName)
	fmt.Fprintf(&b, "Total %d records\n", len(records))
	b.WriteString(headerRule + "\n\n")

	for i, r := range records {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, oneLine(r.Title))
		fmt.Fprintf(&b, "Author: %s\n", oneLine(r.Author))
		date := notSet
		if r.Date != nil {
			date = r.Date.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "Date: %s\n", date)
		fmt.Fprintf(&b, "Sentiment: %s\n", r.Sentiment)
		fmt.Fprintf(&b, "URL: %s\n", oneLine(r.URL))
		rating := notSet
		if r.Rating != nil {
			rating = strconv.Itoa(*r.Rating)
		}
		fmt.Fprintf(&b, "Rating: %s\n", rating)
		fmt.Fprintf(&b, "Resolved: %t\n", r.IsResolved)
		fmt.Fprintf(&b, "Content: %s\n", strings.TrimRight(r.Content, "\n"))
		b.WriteString(recordRule + "\n\n")
	}
	return b.String()
}

// Decode parses the cache layout. Records without a closing rule are dropped,
// unknown sentiment decodes as neutral and a bad rating decodes as nil.
func Decode(text string) []domain.Complaint {
	var (
		out       []domain.Complaint
		cur       *domain.Complaint
		inContent bool
		content   []string
	)
	commit := func() {
		if cur == nil {
			return
		}
		cur.Content = strings.TrimRight(strings.Join(content, "\n"), "\n")
		cur.FromCache = true
		out = append(out, *cur)
		cur, content, inContent = nil, nil, false
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")

		if m := markerRe.FindStringSubmatch(line); m != nil {
			// a new marker while a record is still open means the previous one was never closed
			cur = &domain.Complaint{Title: strings.TrimSpace(m[2]), Sentiment: domain.SentimentNeutral}
			content, inContent = nil, false
			continue
		}
		if cur == nil {
			continue
		}
		if isRule(line) {
			commit()
			continue
		}
		if m := fieldRe.FindStringSubmatch(line); m != nil {
			inContent = false
			val := strings.TrimSpace(m[2])
			switch m[1] {
			case "Author":
				cur.Author = val
			case "Date":
				if val != notSet {
					cur.Date = analysis.ParseDate(val)
				}
			case "Sentiment":
				cur.Sentiment = domain.ParseSentiment(val)
			case "URL":
				cur.URL = val
			case "Rating":
				if n, err := strconv.Atoi(val); err == nil {
					cur.Rating = &n
				}
			case "Resolved":
				cur.IsResolved, _ = strconv.ParseBool(val)
			case "Content":
				inContent = true
				content = []string{strings.TrimPrefix(m[2], " ")}
			}
			continue
		}
		if inContent {
			content = append(content, line)
		}
	}
	return out
}

func isRule(line string) bool {
	return len(line) >= 4 && strings.Trim(line, "-") == ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func displaySource(source string) string {
	switch source {
	case domain.SourceSikayetvar:
		return "Sikayetvar"
	case domain.SourceTrustpilot:
		return "Trustpilot"
	case domain.SourceGoogleReviews:
		return "Google Reviews"
	}
	return source
}

package usecase

import (
	"net/url"
	"strings"
	"time"

	articledomain "github.com/AveryLor/BiasBreaker-sub000/internal/article/domain"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"
)

const (
	unknownSource = "Unknown Source"
	excerptLength = 150
	dateLayout    = "January 2, 2006"
)

type biasBucket struct {
	upper float64 // inclusive
	label articledomain.Perspective
}

// Buckets partition [0, 100]; each upper bound belongs to its own bucket.
var biasBuckets = []biasBucket{
	{20, articledomain.PerspectiveLiberal},
	{40, articledomain.PerspectiveSocialDemocrat},
	{60, articledomain.PerspectiveCentrist},
	{80, articledomain.PerspectiveClassicalLiberal},
	{100, articledomain.PerspectiveConservative},
}

// PerspectiveFor maps a bias score to its label. Scores below 0 land in the
// first bucket, scores above 100 in the last. Negative scores are Liberal, not
// Conservative.
func PerspectiveFor(score float64) articledomain.Perspective {
	for _, b := range biasBuckets {
		if score <= b.upper {
			return b.label
		}
	}
	return biasBuckets[len(biasBuckets)-1].label
}

// SourceName derives a display name from an article URL host.
func SourceName(link string) string {
	if link == "" {
		return unknownSource
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return unknownSource
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Excerpt prefers the backend's summary bullets over a content prefix.
func Excerpt(summary []string, content string) string {
	if joined := strings.TrimSpace(strings.Join(summary, " ")); joined != "" {
		return joined
	}
	r := []rune(content)
	if len(r) > excerptLength {
		r = r[:excerptLength]
	}
	return string(r) + "..."
}

// ToArticle converts a backend article into its card view-model. now stamps
// articles that carry no publication date.
func ToArticle(a newsapi.BackendArticle, now time.Time) articledomain.Article {
	perspective := articledomain.Perspective(a.Perspective)
	if a.BiasScore != nil {
		perspective = PerspectiveFor(*a.BiasScore)
	}

	link := a.SourceLink
	if link == "" {
		link = "#"
	}

	date := a.PublicationDate
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		date = t.Format(dateLayout)
	} else if date == "" {
		date = now.Format(dateLayout)
	}

	return articledomain.Article{
		ID:          a.IDString(),
		Source:      SourceName(a.SourceLink),
		Title:       a.Title,
		Excerpt:     Excerpt(a.Summary, a.Content),
		Perspective: perspective,
		BiasScore:   a.BiasScore,
		URL:         link,
		Date:        date,
		Content:     a.Content,
	}
}

// ToMergedArticle converts the synthesized neutral article.
func ToMergedArticle(n *newsapi.NeutralArticle) *articledomain.MergedArticle {
	if n == nil {
		return nil
	}
	merged := &articledomain.MergedArticle{
		Title:             n.Title,
		Summary:           n.Content,
		SourcesConsidered: make([]string, 0, len(n.SourceArticles)),
		SourceArticles:    make([]articledomain.SourceArticle, 0, len(n.SourceArticles)),
	}
	for _, s := range n.SourceArticles {
		name := s.Title
		if s.SourceLink != "" {
			if host := SourceName(s.SourceLink); host != unknownSource {
				name = host
			}
		}
		summary := s.Summary
		if summary == nil {
			summary = []string{}
		}
		merged.SourcesConsidered = append(merged.SourcesConsidered, name)
		merged.SourceArticles = append(merged.SourceArticles, articledomain.SourceArticle{
			ID:         s.IDString(),
			Title:      s.Title,
			BiasScore:  s.BiasScore,
			SourceLink: s.SourceLink,
			Summary:    summary,
		})
	}
	return merged
}

// ToSearchResult adapts a whole chat response.
func ToSearchResult(resp *newsapi.ChatResponse, now time.Time) *articledomain.SearchResult {
	out := &articledomain.SearchResult{
		Query:    resp.Query,
		Message:  resp.Message,
		Keywords: resp.Keywords,
		Articles: make([]articledomain.Article, 0, len(resp.Results)),
		Merged:   ToMergedArticle(resp.NeutralArticle),
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	for _, a := range resp.Results {
		out.Articles = append(out.Articles, ToArticle(a, now))
	}
	return out
}

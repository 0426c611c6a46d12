package domain

// Perspective is the bias bucket label shown on article cards.
type Perspective string

const (
	PerspectiveLiberal          Perspective = "Liberals"
	PerspectiveSocialDemocrat   Perspective = "Social Democrats"
	PerspectiveCentrist         Perspective = "Centrist or Objective"
	PerspectiveClassicalLiberal Perspective = "Classical Liberals"
	PerspectiveConservative     Perspective = "Conservatives"
)

// Article is the card view-model for one source article.
type Article struct {
	ID          string      `json:"id"`
	Source      string      `json:"source"`
	Title       string      `json:"title"`
	Excerpt     string      `json:"excerpt"`
	Perspective Perspective `json:"perspective"`
	BiasScore   *float64    `json:"biasScore,omitempty"`
	URL         string      `json:"url"`
	Date        string      `json:"date"`
	Content     string      `json:"content,omitempty"`
}

type SourceArticle struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	BiasScore  *float64 `json:"biasScore,omitempty"`
	SourceLink string   `json:"sourceLink"`
	Summary    []string `json:"summary"`
}

// MergedArticle is the neutral article synthesized from several sources.
type MergedArticle struct {
	Title             string          `json:"title"`
	Summary           string          `json:"summary"`
	SourcesConsidered []string        `json:"sourcesConsidered"`
	SourceArticles    []SourceArticle `json:"sourceArticles,omitempty"`
}

// SearchResult is what the portal returns for a submitted topic.
type SearchResult struct {
	Query    string         `json:"query"`
	Message  string         `json:"message,omitempty"`
	Keywords []string       `json:"keywords"`
	Articles []Article      `json:"articles"`
	Merged   *MergedArticle `json:"merged,omitempty"`
}

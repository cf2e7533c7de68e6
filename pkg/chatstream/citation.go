package chatstream

import (
	"fmt"
	"math"
)

// RelevanceThreshold is the minimum score (exclusive) for a citation to be surfaced.
const RelevanceThreshold = 0.4

// Citation is a scored reference to a supporting document.
type Citation struct {
	DocumentName   string  `json:"document_name"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

// RetrieverResource is one entry of metadata.retriever_resources as sent by the service.
type RetrieverResource struct {
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	DatasetName  string  `json:"dataset_name,omitempty"`
	Position     int     `json:"position,omitempty"`
}

// Metadata is the metadata object of a message_end event.
type Metadata struct {
	RetrieverResources []RetrieverResource `json:"retriever_resources"`
}

// FilterCitations keeps resources scoring above RelevanceThreshold, in received order.
func FilterCitations(resources []RetrieverResource) []Citation {
	citations := make([]Citation, 0, len(resources))
	for _, r := range resources {
		if r.Score > RelevanceThreshold {
			citations = append(citations, Citation{
				DocumentName:   r.DocumentName,
				Content:        r.Content,
				RelevanceScore: r.Score,
			})
		}
	}
	return citations
}

// ScoreLabel renders the score as a whole percentage, e.g. "87%".
func (c Citation) ScoreLabel() string {
	return fmt.Sprintf("%d%%", int(math.Round(c.RelevanceScore*100)))
}

// Preview returns at most n runes of the content, with "..." appended when cut.
func (c Citation) Preview(n int) string {
	runes := []rune(c.Content)
	if n <= 0 || len(runes) <= n {
		return c.Content
	}
	return string(runes[:n]) + "..."
}

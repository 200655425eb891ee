package models

// SearchResult is a single ranked hit.
type SearchResult struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}

// IndexStats summarizes a bound index.
type IndexStats struct {
	TotalVectors     int `json:"total_vectors"`
	EmbeddingDim     int `json:"embedding_dim"`
	TotalIdentifiers int `json:"total_identifiers"`
}

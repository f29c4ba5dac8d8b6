package dto

type DocumentResponse struct {
	Id           string `json:"id"`
	DisplayLabel string `json:"display_label"`
	SourceURL    string `json:"source_url"`
	RelayURL     string `json:"relay_url"`
	IndexedCount int    `json:"indexed_clauses"`
}

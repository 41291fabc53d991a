package domain

// Document represents a single source file loaded for passage extraction.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Passage is a window of document text handed to the question generator.
type Passage struct {
	DocumentID string `json:"document_id"`
	ID         string `json:"id"`
	Index      int    `json:"index"`
	Topic      string `json:"topic"`
	Text       string `json:"text"`
}

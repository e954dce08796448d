package model

// Document is a text stored in the vector store with free-form metadata
type Document struct {
	Text     string         `json:"text" yaml:"text"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// RetrievedDocument is a query hit; smaller Distance means more similar
type RetrievedDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Distance float32        `json:"distance"`
}

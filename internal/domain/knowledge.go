package domain

// KnowledgeEntry is one Q&A pair of the static knowledge base
type KnowledgeEntry struct {
	ID       int64    `json:"id" yaml:"-"`
	Question string   `json:"question" yaml:"question"`
	Answer   string   `json:"answer" yaml:"answer"`
	Category string   `json:"category" yaml:"category"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Language string   `json:"language" yaml:"language"`
	Priority int      `json:"priority" yaml:"priority"`
}

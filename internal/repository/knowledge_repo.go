package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/liliang-cn/agriassist/internal/domain"
)

// Minimum rune length of a query word used for lookup
const minWordLen = 3

// KnowledgeRepository serves the static Q&A corpus
type KnowledgeRepository struct {
	db *DB
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Import upserts entries keyed by question and replaces their keyword lists
func (r *KnowledgeRepository) Import(ctx context.Context, entries []domain.KnowledgeEntry) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if strings.TrimSpace(e.Question) == "" || strings.TrimSpace(e.Answer) == "" {
			return 0, fmt.Errorf("%w: knowledge entry needs question and answer", domain.ErrInvalidRequest)
		}
		language := e.Language
		if language == "" {
			language = "en"
		}

		keywords := normalizeKeywords(e.Keywords)

		var id int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO knowledge_entries (question, answer, category, language, priority, keywords)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(question) DO UPDATE SET
				answer = excluded.answer,
				category = excluded.category,
				language = excluded.language,
				priority = excluded.priority,
				keywords = excluded.keywords
			RETURNING id
		`, e.Question, e.Answer, e.Category, language, e.Priority, strings.Join(keywords, " ")).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to upsert knowledge entry %q: %w", e.Question, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_keywords WHERE entry_id = ?`, id); err != nil {
			return 0, fmt.Errorf("failed to clear keywords: %w", err)
		}
		for _, kw := range keywords {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO knowledge_keywords (entry_id, keyword) VALUES (?, ?)`, id, kw,
			); err != nil {
				return 0, fmt.Errorf("failed to insert keyword: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit knowledge import: %w", err)
	}
	return len(entries), nil
}

// Lookup returns the best entry for query. Passes run in order and the first
// hit wins: a question equal to the query ignoring case, spacing and trailing
// punctuation; a full-text match containing every query word; a full-text
// match containing any query word; a substring match of the query words
// against entry keywords. Stopwords never take part in matching. Full-text
// hits rank by relevance then priority, keyword hits by priority. It returns
// domain.ErrNoKnowledgeMatch when no pass finds anything.
func (r *KnowledgeRepository) Lookup(ctx context.Context, query string) (*domain.KnowledgeEntry, error) {
	entry, err := r.searchQuestion(ctx, query)
	if err != nil || entry != nil {
		return entry, err
	}

	words := queryWords(query)
	if len(words) == 0 {
		return nil, domain.ErrNoKnowledgeMatch
	}

	entry, err = r.searchText(ctx, words, " AND ")
	if err != nil || entry != nil {
		return entry, err
	}

	if len(words) > 1 {
		entry, err = r.searchText(ctx, words, " OR ")
		if err != nil || entry != nil {
			return entry, err
		}
	}

	entry, err = r.searchKeywords(ctx, words)
	if err != nil || entry != nil {
		return entry, err
	}
	return nil, domain.ErrNoKnowledgeMatch
}

func (r *KnowledgeRepository) searchQuestion(ctx context.Context, query string) (*domain.KnowledgeEntry, error) {
	q := normalizeQuestion(query)
	if q == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, question, answer, category, language, priority, keywords
		FROM knowledge_entries
		WHERE lower(trim(question, ' ?!.')) = ?
		ORDER BY priority DESC, id ASC
		LIMIT 1
	`, q)

	return scanEntry(row)
}

func (r *KnowledgeRepository) searchText(ctx context.Context, words []string, op string) (*domain.KnowledgeEntry, error) {
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + w + `"`
	}

	// bm25 is lower for better matches; question hits weigh more than answer hits.
	row := r.db.QueryRowContext(ctx, `
		SELECT k.id, k.question, k.answer, k.category, k.language, k.priority, k.keywords
		FROM knowledge_fts
		JOIN knowledge_entries k ON k.id = knowledge_fts.rowid
		WHERE knowledge_fts MATCH ?
		ORDER BY bm25(knowledge_fts, 10.0, 1.0, 5.0) ASC, k.priority DESC
		LIMIT 1
	`, strings.Join(terms, op))

	return scanEntry(row)
}

func (r *KnowledgeRepository) searchKeywords(ctx context.Context, words []string) (*domain.KnowledgeEntry, error) {
	conds := make([]string, len(words))
	args := make([]any, len(words))
	for i, w := range words {
		conds[i] = `kw.keyword LIKE '%' || ? || '%'`
		args[i] = w
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT k.id, k.question, k.answer, k.category, k.language, k.priority, k.keywords
		FROM knowledge_entries k
		WHERE EXISTS (
			SELECT 1 FROM knowledge_keywords kw
			WHERE kw.entry_id = k.id AND (`+strings.Join(conds, " OR ")+`)
		)
		ORDER BY k.priority DESC, k.id ASC
		LIMIT 1
	`, args...)

	return scanEntry(row)
}

// Count returns the number of entries in the corpus
func (r *KnowledgeRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&n)
	return n, err
}

func scanEntry(row *sql.Row) (*domain.KnowledgeEntry, error) {
	e := &domain.KnowledgeEntry{}
	var keywords string
	err := row.Scan(&e.ID, &e.Question, &e.Answer, &e.Category, &e.Language, &e.Priority, &keywords)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if keywords != "" {
		e.Keywords = strings.Fields(keywords)
	}
	return e, nil
}

// stopwords carry no topic and are dropped from lookup queries
var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "all": true, "also": true,
	"and": true, "any": true, "are": true, "because": true, "been": true,
	"before": true, "being": true, "but": true, "can": true, "could": true,
	"did": true, "does": true, "doing": true, "for": true, "from": true,
	"get": true, "give": true, "had": true, "has": true, "have": true,
	"her": true, "here": true, "him": true, "his": true, "how": true,
	"into": true, "its": true, "just": true, "know": true, "let": true,
	"may": true, "might": true, "more": true, "most": true, "much": true,
	"must": true, "not": true, "now": true, "off": true, "only": true,
	"other": true, "our": true, "ours": true, "out": true, "over": true,
	"please": true, "really": true, "shall": true, "she": true, "should": true,
	"some": true, "such": true, "tell": true, "than": true, "that": true,
	"the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "too": true,
	"very": true, "want": true, "was": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true,
	"whom": true, "whose": true, "why": true, "will": true, "with": true,
	"would": true, "yes": true, "you": true, "your": true, "yours": true,
}

// queryWords lowercases query and keeps letter/digit runs of at least
// minWordLen runes that are not stopwords
func queryWords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})

	seen := make(map[string]bool, len(fields))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minWordLen || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		words = append(words, f)
	}
	return words
}

// normalizeQuestion mirrors the SQL lower(trim(question, ' ?!.')) used for
// exact question matches, with inner whitespace collapsed
func normalizeQuestion(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	return strings.ToLower(strings.Trim(q, " ?!."))
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

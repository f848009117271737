// Package index maintains the three search structures layered over the
// key-value mapping: an inverted index for TF-IDF ranked full-text search,
// a phrase index for exact-substring search, and a hashed-trigram semantic
// index for embedding similarity search.
//
// The forward posting (key -> ordered token list) is the authoritative
// owner of what a key currently indexes. Every removal — whether from an
// explicit delete or an overwrite — goes through the forward posting
// first, because it is the only place that remembers which terms a key
// contributed to the inverted index.
package index

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Result is one scored hit from full-text or semantic search.
type Result struct {
	Key   string
	Score float64
}

// Manager owns the inverted, phrase, and embedding indexes for one node.
// It is safe for concurrent use, though in practice the owning kv.Store
// already serializes all mutating calls under its own master mutex — the
// lock here exists so Manager is also safe to use standalone (as tests do).
type Manager struct {
	mu sync.Mutex

	inverted map[string]map[string]int // term -> key -> term frequency
	forward  map[string][]string       // key -> ordered tokens (authoritative)
	phrases  map[string]string         // key -> lowercased original value
	embed    map[string][]float64      // key -> unit-length embedding
	docCount int

	order []string // insertion order, for stable tie-breaking
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		inverted: make(map[string]map[string]int),
		forward:  make(map[string][]string),
		phrases:  make(map[string]string),
		embed:    make(map[string][]float64),
	}
}

// Index adds or replaces key's contribution to every sub-index. If key was
// already indexed, its previous contribution is removed first so overwrite
// never leaves stale postings behind.
func (m *Manager) Index(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.forward[key]; ok {
		m.removeLocked(key)
	}

	tokens := tokenize(value)
	m.forward[key] = tokens
	m.docCount++
	m.order = append(m.order, key)

	for _, tok := range tokens {
		postings := m.inverted[tok]
		if postings == nil {
			postings = make(map[string]int)
			m.inverted[tok] = postings
		}
		postings[key]++
	}

	m.phrases[key] = strings.ToLower(value)
	m.embed[key] = Embed(value)
}

// Remove deletes key from every sub-index via the forward posting.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
}

// removeLocked must be called with mu held.
func (m *Manager) removeLocked(key string) {
	tokens, ok := m.forward[key]
	if !ok {
		return
	}
	delete(m.forward, key)
	if m.docCount > 0 {
		m.docCount--
	}

	for _, tok := range tokens {
		postings := m.inverted[tok]
		if postings == nil {
			continue
		}
		delete(postings, key)
		if len(postings) == 0 {
			delete(m.inverted, tok)
		}
	}

	delete(m.phrases, key)
	delete(m.embed, key)

	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// tf is the term frequency of tok within key's value: occurrences divided
// by key's total token count.
func (m *Manager) tf(tok, key string) float64 {
	tokens := m.forward[key]
	if len(tokens) == 0 {
		return 0
	}
	count := m.inverted[tok][key]
	return float64(count) / float64(len(tokens))
}

// idf is the inverse document frequency of tok: ln((N+1)/(df+1)).
func (m *Manager) idf(tok string) float64 {
	df := len(m.inverted[tok])
	if df == 0 {
		return 0
	}
	return math.Log(float64(m.docCount+1) / float64(df+1))
}

// FullTextSearch tokenizes query, scores every candidate key (any key whose
// value contains at least one query token) by summed TF-IDF, and returns
// the top k descending by score, ties broken by insertion order.
func (m *Manager) FullTextSearch(query string, k int) []Result {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := make(map[string]struct{})
	for _, tok := range queryTokens {
		for key := range m.inverted[tok] {
			candidates[key] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	scores := make(map[string]float64, len(candidates))
	for key := range candidates {
		var score float64
		for _, tok := range queryTokens {
			score += m.tf(tok, key) * m.idf(tok)
		}
		scores[key] = score
	}

	results := make([]Result, 0, len(scores))
	for key, score := range scores {
		results = append(results, Result{Key: key, Score: score})
	}
	m.stableSortByScore(results)

	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

// PhraseSearch returns, in insertion order, every key whose lowercased
// value contains phrase (lowercased) as a substring.
func (m *Manager) PhraseSearch(phrase string) []string {
	needle := strings.ToLower(phrase)

	m.mu.Lock()
	defer m.mu.Unlock()

	var hits []string
	for _, key := range m.order {
		if strings.Contains(m.phrases[key], needle) {
			hits = append(hits, key)
		}
	}
	return hits
}

// SemanticSearch embeds query and scores every key by cosine similarity
// (equivalently, dot product — embeddings are unit-normalized). Scores are
// rounded to 4 decimal places as the wire contract requires.
func (m *Manager) SemanticSearch(query string, k int) []Result {
	q := Embed(query)

	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]Result, 0, len(m.embed))
	for _, key := range m.order {
		vec, ok := m.embed[key]
		if !ok {
			continue
		}
		sim := round4(Cosine(q, vec))
		results = append(results, Result{Key: key, Score: sim})
	}
	m.stableSortByScore(results)

	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results
}

// stableSortByScore orders results by descending score, breaking ties by
// each key's insertion-order position (earlier insertion first). Must be
// called with mu held.
func (m *Manager) stableSortByScore(results []Result) {
	pos := make(map[string]int, len(m.order))
	for i, k := range m.order {
		pos[k] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return pos[results[i].Key] < pos[results[j].Key]
	})
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

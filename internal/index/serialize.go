package index

import "github.com/ppriyankuu/kvstore/internal/walog"

// Document is the full serialized state of a Manager: maps keyed by term,
// forward postings, phrases, embeddings, document count, and the insertion
// order needed to reproduce stable tie-breaks after a reload.
type Document struct {
	Inverted map[string]map[string]int `json:"inverted"`
	Forward  map[string][]string       `json:"forward"`
	Phrases  map[string]string         `json:"phrases"`
	Embed    map[string][]float64      `json:"embeddings"`
	DocCount int                       `json:"doc_count"`
	Order    []string                  `json:"order"`
}

// Snapshot returns a point-in-time copy of every sub-index, suitable for
// JSON serialization.
func (m *Manager) Snapshot() Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	inverted := make(map[string]map[string]int, len(m.inverted))
	for term, postings := range m.inverted {
		cp := make(map[string]int, len(postings))
		for k, v := range postings {
			cp[k] = v
		}
		inverted[term] = cp
	}
	forward := make(map[string][]string, len(m.forward))
	for k, v := range m.forward {
		forward[k] = append([]string(nil), v...)
	}
	phrases := make(map[string]string, len(m.phrases))
	for k, v := range m.phrases {
		phrases[k] = v
	}
	embed := make(map[string][]float64, len(m.embed))
	for k, v := range m.embed {
		embed[k] = append([]float64(nil), v...)
	}

	return Document{
		Inverted: inverted,
		Forward:  forward,
		Phrases:  phrases,
		Embed:    embed,
		DocCount: m.docCount,
		Order:    append([]string(nil), m.order...),
	}
}

// Load replaces the Manager's state with doc's contents wholesale — used
// when an on-disk index file is found at startup and is trusted as-is;
// mutations from that point on keep it in sync with the mapping.
func (m *Manager) Load(doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.Inverted == nil {
		doc.Inverted = make(map[string]map[string]int)
	}
	if doc.Forward == nil {
		doc.Forward = make(map[string][]string)
	}
	if doc.Phrases == nil {
		doc.Phrases = make(map[string]string)
	}
	if doc.Embed == nil {
		doc.Embed = make(map[string][]float64)
	}
	m.inverted = doc.Inverted
	m.forward = doc.Forward
	m.phrases = doc.Phrases
	m.embed = doc.Embed
	m.docCount = doc.DocCount
	m.order = doc.Order
}

// SaveToFile atomically persists the current state to path.
func (m *Manager) SaveToFile(path string) error {
	return walog.WriteAtomic(path, m.Snapshot())
}

// LoadFromFile loads state from path if it exists. found is false (with a
// nil error) when there is nothing on disk yet — the caller should then
// rebuild the index from the current mapping instead.
func (m *Manager) LoadFromFile(path string) (found bool, err error) {
	var doc Document
	found, err = walog.ReadIfExists(path, &doc)
	if err != nil || !found {
		return found, err
	}
	m.Load(doc)
	return true, nil
}

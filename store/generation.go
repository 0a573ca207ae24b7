package store

import "sync"

// generations hands out monotonically increasing tokens from one sequence.
// Per id it remembers the last token issued by a mutation; per list key it
// remembers the last token issued by a list request.
type generations struct {
	mu    sync.Mutex
	seq   uint64
	byID  map[string]uint64
	lists map[string]uint64
}

func newGenerations() *generations {
	return &generations{byID: make(map[string]uint64), lists: make(map[string]uint64)}
}

// next issues a new generation for id.
func (g *generations) next(id string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.byID[id] = g.seq
	return g.seq
}

// current reports whether gen is still the latest issued for id.
func (g *generations) current(id string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byID[id] == gen
}

// startList issues a token for a list request under key.
func (g *generations) startList(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.lists[key] = g.seq
	return g.seq
}

// listCurrent reports whether token is still the latest list request for key.
func (g *generations) listCurrent(key string, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lists[key] == token
}

// mutatedSince reports whether id saw a mutation after token was issued.
func (g *generations) mutatedSince(id string, token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byID[id] > token
}

func (g *generations) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byID = make(map[string]uint64)
	g.lists = make(map[string]uint64)
}

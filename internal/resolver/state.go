package resolver

import (
	"sort"
	"sync"

	"compilerd/service/internal/warehouse"
)

// Progress tracks what the client has supplied during one negotiation.
type Progress struct {
	// Rounds counts server requests answered
	Rounds int
	// Documents contains the set of supplied document URLs
	Documents map[string]struct{}
	// Tables maps connection names to the table paths inspected on them
	Tables map[string][]string
	// SQLBlocks contains the set of described SQL block names
	SQLBlocks map[string]struct{}
	// Runs counts executed queries
	Runs int
	// Result holds the last executed query's rows
	Result *warehouse.Result
	// mu protects concurrent access to all fields
	mu sync.Mutex
}

// NewProgress creates a new Progress with initialized maps.
func NewProgress() *Progress {
	return &Progress{
		Documents: make(map[string]struct{}),
		Tables:    make(map[string][]string),
		SQLBlocks: make(map[string]struct{}),
	}
}

func (p *Progress) round() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Rounds++
	return p.Rounds
}

func (p *Progress) addDocument(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Documents[url] = struct{}{}
}

func (p *Progress) addTable(connection, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Tables[connection] = append(p.Tables[connection], path)
}

func (p *Progress) addSQLBlock(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SQLBlocks[name] = struct{}{}
}

func (p *Progress) addRun(res *warehouse.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Runs++
	p.Result = res
}

// DocumentCount returns the number of supplied documents.
func (p *Progress) DocumentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Documents)
}

// TableCount returns the number of inspected tables across connections.
func (p *Progress) TableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, paths := range p.Tables {
		n += len(paths)
	}
	return n
}

// Connections returns the connections that were inspected, sorted.
func (p *Progress) Connections() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Tables))
	for name := range p.Tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

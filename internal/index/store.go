package index

import (
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/symbol"
)

// Store maps library name to its symbols. Libraries keep the order in which
// their files were enumerated and symbols the order of their source file.
type Store struct {
	order []string
	libs  map[string]*Library
}

// Library is one bucket of the store.
type Library struct {
	Name    string
	order   []string
	symbols map[string]*symbol.Symbol
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{libs: make(map[string]*Library)}
}

// Add puts sym into its library bucket. A symbol with a name already present
// replaces it in place.
func (s *Store) Add(sym *symbol.Symbol) {
	lib, ok := s.libs[sym.Library]
	if !ok {
		lib = &Library{Name: sym.Library, symbols: make(map[string]*symbol.Symbol)}
		s.libs[sym.Library] = lib
		s.order = append(s.order, sym.Library)
	}
	if _, exists := lib.symbols[sym.Name]; !exists {
		lib.order = append(lib.order, sym.Name)
	}
	lib.symbols[sym.Name] = sym
}

// Libraries returns the library names in order.
func (s *Store) Libraries() []string {
	return append([]string(nil), s.order...)
}

// Library returns the named bucket.
func (s *Store) Library(name string) (*Library, bool) {
	lib, ok := s.libs[name]
	return lib, ok
}

// Symbol looks up one symbol.
func (s *Store) Symbol(library, name string) (*symbol.Symbol, bool) {
	lib, ok := s.libs[library]
	if !ok {
		return nil, false
	}
	sym, ok := lib.symbols[name]
	return sym, ok
}

// Len returns the total number of symbols.
func (s *Store) Len() int {
	n := 0
	for _, lib := range s.libs {
		n += len(lib.order)
	}
	return n
}

// Names returns the symbol names in order.
func (l *Library) Names() []string {
	return append([]string(nil), l.order...)
}

// Symbols returns the symbols in order.
func (l *Library) Symbols() []*symbol.Symbol {
	out := make([]*symbol.Symbol, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.symbols[name])
	}
	return out
}

// Get returns one symbol.
func (l *Library) Get(name string) (*symbol.Symbol, bool) {
	sym, ok := l.symbols[name]
	return sym, ok
}

package sem

import "github.com/gogpu/fxc/fxsl"

// StorageClass classifies where a symbol's value lives.
type StorageClass uint8

const (
	// StorageLocal is a function-local variable.
	StorageLocal StorageClass = iota
	// StorageParameter is a function parameter.
	StorageParameter
	// StorageGlobalConst is a module-scope constant. Its value is inlined
	// at every use site; it has no runtime storage.
	StorageGlobalConst
)

func (s StorageClass) String() string {
	switch s {
	case StorageLocal:
		return "local"
	case StorageParameter:
		return "parameter"
	case StorageGlobalConst:
		return "global const"
	}
	return "unknown"
}

// Symbol is a named, typed program entity.
type Symbol struct {
	Name    string
	Type    *Type
	Storage StorageClass
	Const   bool
	Span    fxsl.Span

	// Value is the folded constant for StorageGlobalConst symbols.
	Value *ConstValue
}

// SymbolTable is a stack of lexical scopes.
type SymbolTable struct {
	scopes []map[string]*Symbol
}

// NewSymbolTable creates a table with a single (global) scope.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{scopes: []map[string]*Symbol{{}}}
}

// Push enters a new scope.
func (t *SymbolTable) Push() {
	t.scopes = append(t.scopes, map[string]*Symbol{})
}

// Pop leaves the innermost scope.
func (t *SymbolTable) Pop() {
	if len(t.scopes) == 1 {
		panic("sem: pop of global scope")
	}
	t.scopes = t.scopes[:len(t.scopes)-1]
}

// Define inserts a symbol into the innermost scope. It reports false if the
// name is already defined in that scope.
func (t *SymbolTable) Define(sym *Symbol) bool {
	scope := t.scopes[len(t.scopes)-1]
	if _, exists := scope[sym.Name]; exists {
		return false
	}
	scope[sym.Name] = sym
	return true
}

// Lookup resolves a name, innermost scope first.
func (t *SymbolTable) Lookup(name string) (*Symbol, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if sym, ok := t.scopes[i][name]; ok {
			return sym, true
		}
	}
	return nil, false
}

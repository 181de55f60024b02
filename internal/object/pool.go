package object

import (
	"github.com/kristofer/fer/internal/table"
	"github.com/kristofer/fer/internal/value"
)

// Pool is Fer's string intern pool: every String that reaches a constant
// slot, a global name, a field name, or a runtime concatenation result
// passes through Intern, so string equality reduces to pointer identity.
type Pool struct {
	table *table.Table

	// OnAlloc, if set, is invoked once for every genuinely new string this
	// pool creates (not for a lookup that hits an existing entry), so the
	// owner can register it with the collector without this package
	// needing to import gc.
	OnAlloc func(value.Obj)
}

// NewPool returns an empty intern pool.
func NewPool() *Pool {
	return &Pool{table: table.New()}
}

// Intern returns the canonical *String for s, allocating and registering
// one if this is the first time s has been seen.
func (p *Pool) Intern(s string) *String {
	hash := FNV1a32([]byte(s))
	if existing, ok := p.table.FindInterned([]byte(s), hash); ok {
		return existing.(*String)
	}
	str := &String{Chars: s, Hash: hash}
	p.table.Set(str, value.NilValue)
	if p.OnAlloc != nil {
		p.OnAlloc(str)
	}
	return str
}

// Sweep erases interned strings the last mark phase didn't reach, so the
// pool never keeps a reclaimed string's entry alive.
func (p *Pool) Sweep(isMarked func(value.Obj) bool) {
	var dead []*String
	p.table.Each(func(key table.StringKey, _ value.Value) {
		s := key.(*String)
		if !isMarked(s) {
			dead = append(dead, s)
		}
	})
	for _, s := range dead {
		p.table.Delete(s)
	}
}

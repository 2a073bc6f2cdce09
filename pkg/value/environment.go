package value

// Environment is one lexical scope: a table of bindings and the enclosing
// scope. Environments are reference counted; call frames, closures and
// child scopes each hold a reference.
type Environment struct {
	Parent *Environment
	vars   Value
	count  int
}

// NewEnvironment returns an unowned scope nested in parent, which may be nil.
func NewEnvironment(parent *Environment) *Environment {
	if parent != nil {
		parent.Retain()
	}
	return &Environment{Parent: parent, vars: NewTable().Take()}
}

// Retain claims one reference.
func (e *Environment) Retain() *Environment {
	if e != nil {
		e.count++
	}
	return e
}

// Release drops one reference. The last release frees the bindings and the
// reference to the parent.
func (e *Environment) Release() {
	if e == nil {
		return
	}
	e.count--
	if e.count > 0 {
		return
	}
	vars := e.vars
	parent := e.Parent
	e.vars = Value{}
	e.Parent = nil
	if vars.typ == Table {
		vars.Release()
	}
	parent.Release()
}

// Refs returns the number of references held on e.
func (e *Environment) Refs() int { return e.count }

// Vars returns the binding table of this scope.
func (e *Environment) Vars() Value { return e.vars }

// Define binds name in this scope.
func (e *Environment) Define(name, val Value) {
	Insert(e.vars, name, val)
}

// Lookup searches this scope and its ancestors for name, innermost first.
func (e *Environment) Lookup(name Value) (Value, bool) {
	for env := e; env != nil; env = env.Parent {
		if env.vars.typ != Table {
			continue
		}
		if v, ok := env.vars.ref.table.Get(name); ok {
			return v, true
		}
	}
	return Value{}, false
}

// Depth returns the number of scopes from e to the root, inclusive.
func (e *Environment) Depth() int {
	n := 0
	for env := e; env != nil; env = env.Parent {
		n++
	}
	return n
}

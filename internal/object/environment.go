package object

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"lox/internal/token"
)

var nextID atomic.Uint64

// Binding is one (name, value) pair. Its index in Environment.Bindings is
// the slot the resolver hands out.
type Binding struct {
	Name  string
	Value Object
}

// Environment is the binding table of one block, call activation or class
// body, linked to the scope that encloses it.
type Environment struct {
	ID       uint64
	Bindings []Binding
	Outer    *Environment
}

func nextEnvID() uint64 {
	return nextID.Add(1)
}

func NewEnvironment() *Environment {
	return &Environment{
		ID: nextEnvID(),
	}
}

// NewEnclosedEnvironment creates a child scope of outer.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.Outer = outer
	return env
}

// Define appends a new binding to this environment, even when the name is
// already present. The new binding shadows the old one for name lookups.
func (e *Environment) Define(name string, val Object) {
	e.Bindings = append(e.Bindings, Binding{Name: name, Value: val})
	slog.Debug("binding value",
		slog.Uint64("env", e.ID),
		slog.String("name", name),
		slog.Int("slot", len(e.Bindings)-1))
}

// Len reports the number of slots in use.
func (e *Environment) Len() int {
	return len(e.Bindings)
}

// Names returns binding names in slot order.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.Bindings))
	for _, b := range e.Bindings {
		names = append(names, b.Name)
	}
	return names
}

func (e *Environment) lookup(name string) int {
	for i := len(e.Bindings) - 1; i >= 0; i-- {
		if e.Bindings[i].Name == name {
			return i
		}
	}
	return -1
}

// Get searches the chain by name. It serves unresolved (global) references.
func (e *Environment) Get(name token.Token) (Object, error) {
	for env := e; env != nil; env = env.Outer {
		if i := env.lookup(name.Lexeme); i >= 0 {
			return env.Bindings[i].Value, nil
		}
	}
	return nil, NewRuntimeError(name, "Undefined variable '%s'.", name.Lexeme)
}

// GetAt reads the binding at slot after walking depth enclosing links.
func (e *Environment) GetAt(depth, slot int) Object {
	return e.Ancestor(depth).Bindings[slot].Value
}

// GetAtName walks depth links and then searches that environment by name.
func (e *Environment) GetAtName(depth int, name string) (Object, bool) {
	env := e.Ancestor(depth)
	if i := env.lookup(name); i >= 0 {
		return env.Bindings[i].Value, true
	}
	return nil, false
}

// Assign updates an existing binding found by name anywhere on the chain.
// It never creates a binding.
func (e *Environment) Assign(name token.Token, val Object) error {
	for env := e; env != nil; env = env.Outer {
		if i := env.lookup(name.Lexeme); i >= 0 {
			env.Bindings[i].Value = val
			return nil
		}
	}
	return NewRuntimeError(name, "Undefined variable '%s'.", name.Lexeme)
}

// AssignAt overwrites the binding at slot after walking depth links.
func (e *Environment) AssignAt(depth, slot int, val Object) {
	e.Ancestor(depth).Bindings[slot].Value = val
}

// Ancestor follows depth enclosing links. Walking past the root means the
// resolver and evaluator disagree on scope shape.
func (e *Environment) Ancestor(depth int) *Environment {
	env := e
	for i := 0; i < depth; i++ {
		if env.Outer == nil {
			panic(fmt.Sprintf("environment %d has no ancestor at depth %d", e.ID, depth))
		}
		env = env.Outer
	}
	return env
}

// Depth counts the links from e to the root.
func (e *Environment) Depth() int {
	n := 0
	for env := e.Outer; env != nil; env = env.Outer {
		n++
	}
	return n
}

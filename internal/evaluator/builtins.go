package evaluator

import (
	"time"
	"unicode/utf8"

	"lox/internal/object"
	"lox/internal/token"
)

type builtin struct {
	arity int
	fn    func(ex object.Executor, args []object.Object) (object.Object, error)
}

var builtins = map[string]builtin{
	"clock":  {0, funcClock},
	"str":    {1, funcStr},
	"len":    {1, funcLen},
	"typeof": {1, funcTypeof},
}

func registerBuiltins(e *Evaluator) {
	for _, name := range []string{"clock", "str", "len", "typeof"} {
		b := builtins[name]
		e.DefineNative(name, b.arity, b.fn)
	}
}

// funcClock returns wall-clock seconds as a float.
func funcClock(_ object.Executor, _ []object.Object) (object.Object, error) {
	return &object.Number{Value: float64(time.Now().UnixNano()) / float64(time.Second)}, nil
}

func funcStr(_ object.Executor, args []object.Object) (object.Object, error) {
	return &object.String{Value: object.Stringify(args[0])}, nil
}

// funcLen counts runes, not bytes.
func funcLen(_ object.Executor, args []object.Object) (object.Object, error) {
	s, ok := args[0].(*object.String)
	if !ok {
		return nil, object.NewRuntimeError(token.Synthetic(token.IDENT, "len", 0),
			"argument to `len` must be a string, got %s", object.TypeName(args[0]))
	}
	return &object.Number{Value: float64(utf8.RuneCountInString(s.Value))}, nil
}

func funcTypeof(_ object.Executor, args []object.Object) (object.Object, error) {
	return &object.String{Value: object.TypeName(args[0])}, nil
}

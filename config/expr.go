package config

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Expr is a 32 bit number in a board file. It may be written as an integer
// or as a string holding an integer expression, such as "64 * KiB" or
// "0x20000000 + 16 * KiB".
type Expr uint32

// Predeclared names of board expressions.
var Predeclared = starlark.StringDict{
	"KiB": starlark.MakeInt(1 << 10),
	"MiB": starlark.MakeInt(1 << 20),
}

// Eval evaluates an integer expression.
func Eval(expr string) (value uint32, err error) {
	thread := starlark.Thread{Name: "config"}
	opts := syntax.FileOptions{}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, Predeclared)
	if err != nil {
		err = &ErrExpr{Expr: expr, Err: err}
		return
	}

	st_int, ok := dict["rc"].(starlark.Int)
	if !ok {
		err = &ErrExpr{Expr: expr}
		return
	}
	st_uint64, ok := st_int.Uint64()
	if !ok || st_uint64 > 1<<32-1 {
		err = &ErrExpr{Expr: expr}
		return
	}

	value = uint32(st_uint64)
	return
}

// UnmarshalTOML decodes an integer or an expression string.
func (expr *Expr) UnmarshalTOML(data any) (err error) {
	var value uint32
	switch data := data.(type) {
	case int64:
		if data < 0 || data > 1<<32-1 {
			err = &ErrExpr{Expr: fmt.Sprint(data)}
			return
		}
		value = uint32(data)
	case string:
		value, err = Eval(data)
		if err != nil {
			return
		}
	default:
		err = ErrExprType
		return
	}

	*expr = Expr(value)
	return
}

// MarshalText writes the value in hexadecimal.
func (expr Expr) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%x", uint32(expr))), nil
}

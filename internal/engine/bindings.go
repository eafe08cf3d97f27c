package engine

import (
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// bindingOrder lists top-level names in the order the script first binds
// them. It descends into top-level control flow but not function bodies.
func bindingOrder(f *syntax.File) []string {
	var (
		out  []string
		seen = map[string]bool{}
	)
	add := func(id *syntax.Ident) {
		if id != nil && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
	}
	var target func(e syntax.Expr)
	target = func(e syntax.Expr) {
		switch e := e.(type) {
		case *syntax.Ident:
			add(e)
		case *syntax.TupleExpr:
			for _, x := range e.List {
				target(x)
			}
		case *syntax.ListExpr:
			for _, x := range e.List {
				target(x)
			}
		case *syntax.ParenExpr:
			target(e.X)
		}
	}
	var walk func(stmts []syntax.Stmt)
	walk = func(stmts []syntax.Stmt) {
		for _, s := range stmts {
			switch s := s.(type) {
			case *syntax.AssignStmt:
				target(s.LHS)
			case *syntax.DefStmt:
				add(s.Name)
			case *syntax.LoadStmt:
				for _, id := range s.To {
					add(id)
				}
			case *syntax.IfStmt:
				walk(s.True)
				walk(s.False)
			case *syntax.ForStmt:
				target(s.Vars)
				walk(s.Body)
			case *syntax.WhileStmt:
				walk(s.Body)
			}
		}
	}
	if f != nil {
		walk(f.Stmts)
	}
	return out
}

// orderGlobals returns the names of globals ordered by first binding, with
// anything the walk missed appended in sorted order.
func orderGlobals(f *syntax.File, globals starlark.StringDict) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range bindingOrder(f) {
		if _, ok := globals[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range globals {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

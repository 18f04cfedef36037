package parser

// Reference is one comparison found in an expression: the column (or helper
// call) on one side and the operator applied to it.
type Reference struct {
	Column   string
	Operator string
	Not      bool
}

// References walks expr and returns every comparison whose subject is an
// identifier or a helper call, in source order. Arithmetic and boolean
// connectives are descended into but not reported.
func References(expr Expression) []Reference {
	var r referenceExtractor
	r.extract(expr)
	return r.refs
}

// Columns returns the distinct identifier names referenced anywhere in expr.
func Columns(expr Expression) []string {
	seen := make(map[string]bool)
	var out []string
	Walk(expr, func(e Expression) {
		if id, ok := e.(*Identifier); ok && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
	})
	return out
}

// Walk calls fn for expr and every sub-expression, parents first.
func Walk(expr Expression, fn func(Expression)) {
	if expr == nil {
		return
	}
	fn(expr)
	switch e := expr.(type) {
	case *BinaryExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *UnaryExpr:
		Walk(e.Operand, fn)
	case *ParenExpr:
		Walk(e.Expr, fn)
	case *FunctionCall:
		for _, a := range e.Args {
			Walk(a, fn)
		}
	case *InExpr:
		Walk(e.Expr, fn)
		for _, v := range e.Values {
			Walk(v, fn)
		}
	case *BetweenExpr:
		Walk(e.Expr, fn)
		Walk(e.Low, fn)
		Walk(e.High, fn)
	case *LikeExpr:
		Walk(e.Expr, fn)
		Walk(e.Pattern, fn)
	}
}

type referenceExtractor struct {
	refs []Reference
}

func (r *referenceExtractor) extract(expr Expression) {
	switch e := expr.(type) {
	case *BinaryExpr:
		switch e.Operator {
		case "AND", "OR", "+", "-", "*", "/":
			r.extract(e.Left)
			r.extract(e.Right)
			return
		}
		if name, ok := subject(e.Left); ok {
			r.add(name, e.Operator, false)
		} else if name, ok := subject(e.Right); ok {
			r.add(name, flipOperator(e.Operator), false)
		}
	case *UnaryExpr:
		r.extract(e.Operand)
	case *ParenExpr:
		r.extract(e.Expr)
	case *InExpr:
		if name, ok := subject(e.Expr); ok {
			r.add(name, "IN", e.Not)
		}
	case *BetweenExpr:
		if name, ok := subject(e.Expr); ok {
			r.add(name, "BETWEEN", e.Not)
		}
	case *LikeExpr:
		if name, ok := subject(e.Expr); ok {
			r.add(name, "LIKE", e.Not)
		}
	case *FunctionCall:
		// predicate helpers used as booleans, e.g. isHet(gt('S1'))
		r.add(e.String(), "CALL", false)
	}
}

func (r *referenceExtractor) add(column, op string, not bool) {
	r.refs = append(r.refs, Reference{Column: column, Operator: op, Not: not})
}

// subject reports the name of a comparison operand that reads row data.
func subject(expr Expression) (string, bool) {
	switch e := expr.(type) {
	case *Identifier:
		return e.Name, true
	case *FunctionCall:
		return e.String(), true
	case *ParenExpr:
		return subject(e.Expr)
	}
	return "", false
}

// flipOperator mirrors a comparison so that the subject reads on the left.
func flipOperator(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	default:
		return op
	}
}

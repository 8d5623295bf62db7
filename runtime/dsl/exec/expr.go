package exec

import (
	"fmt"
	"reflect"

	"github.com/streetrace-ai/streetrace-go/runtime/dsl/ir"
)

// evalCtx bundles the WorkflowContext plus an optional Filter "implicit
// subject" binding (spec.md §4.5 "Filter... with the element bound as the
// implicit subject for .field accesses").
type evalCtx struct {
	wc      *WorkflowContext
	subject any
	hasSub  bool
}

// Eval evaluates expr against wc with no implicit Filter subject bound.
func Eval(wc *WorkflowContext, expr ir.Expr) (any, error) {
	return (&evalCtx{wc: wc}).eval(expr)
}

func (e *evalCtx) withSubject(v any) *evalCtx {
	return &evalCtx{wc: e.wc, subject: v, hasSub: true}
}

func (e *evalCtx) eval(expr ir.Expr) (any, error) {
	switch v := expr.(type) {
	case nil:
		return nil, nil
	case ir.Lit:
		return v.Value, nil
	case ir.VarRef:
		val, ok := e.wc.GetVar(v.Name)
		if !ok {
			return nil, fmt.Errorf("dsl: unbound variable %q", v.Name)
		}
		return val, nil
	case ir.LastResult:
		return e.wc.LastResult(), nil
	case ir.Subject:
		if !e.hasSub {
			return nil, fmt.Errorf("dsl: implicit subject referenced outside a filter expression")
		}
		return e.subject, nil
	case ir.FieldAccess:
		base, err := e.eval(v.Base)
		if err != nil {
			return nil, err
		}
		return fieldAccess(base, v.Field)
	case ir.ListLit:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			val, err := e.eval(item)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case ir.BinaryOp:
		left, err := e.eval(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(v.Right)
		if err != nil {
			return nil, err
		}
		return binaryOp(v.Op, left, right)
	case ir.Filter:
		list, err := e.eval(v.List)
		if err != nil {
			return nil, err
		}
		return e.filter(list, v.Where)
	default:
		return nil, fmt.Errorf("dsl: unsupported expression %T", expr)
	}
}

// fieldAccess reads field off base, supporting map[string]any (the common
// case: session/tool results decoded from JSON) and struct values via
// reflection.
func fieldAccess(base any, field string) (any, error) {
	switch m := base.(type) {
	case map[string]any:
		v, ok := m[field]
		if !ok {
			return nil, fmt.Errorf("dsl: field %q not present", field)
		}
		return v, nil
	case nil:
		return nil, fmt.Errorf("dsl: field access %q on nil value", field)
	default:
		rv := reflect.ValueOf(base)
		for rv.Kind() == reflect.Pointer {
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, fmt.Errorf("dsl: field access %q unsupported on %T", field, base)
		}
		fv := rv.FieldByName(field)
		if !fv.IsValid() {
			return nil, fmt.Errorf("dsl: field %q not present on %T", field, base)
		}
		return fv.Interface(), nil
	}
}

// binaryOp implements spec.md §4.5's BinaryOp semantics: "+" concatenates
// sequences, adds numerics; "-" is numeric-only subtraction. Mixed types
// are a runtime error.
func binaryOp(op string, left, right any) (any, error) {
	switch op {
	case "+":
		if ls, lok := asList(left); lok {
			rs, rok := asList(right)
			if !rok {
				return nil, fmt.Errorf("dsl: binary + mixes a sequence with %T", right)
			}
			out := make([]any, 0, len(ls)+len(rs))
			out = append(out, ls...)
			out = append(out, rs...)
			return out, nil
		}
		lf, lok := asNumber(left)
		rf, rok := asNumber(right)
		if !lok || !rok {
			return nil, fmt.Errorf("dsl: binary + requires two sequences or two numbers, got %T and %T", left, right)
		}
		return numericResult(left, right, lf+rf), nil
	case "-":
		lf, lok := asNumber(left)
		rf, rok := asNumber(right)
		if !lok || !rok {
			return nil, fmt.Errorf("dsl: binary - requires two numbers, got %T and %T", left, right)
		}
		return numericResult(left, right, lf-rf), nil
	default:
		return nil, fmt.Errorf("dsl: unsupported binary operator %q", op)
	}
}

func asList(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// numericResult preserves an integer result type when both operands were
// integral, otherwise returns float64.
func numericResult(left, right any, f float64) any {
	_, lInt := left.(int)
	_, rInt := right.(int)
	if lInt && rInt {
		return int(f)
	}
	return f
}

func (e *evalCtx) filter(list any, where ir.Expr) (any, error) {
	items, ok := asList(list)
	if !ok {
		return nil, fmt.Errorf("dsl: filter requires a sequence, got %T", list)
	}
	var out []any
	for _, item := range items {
		sub := e.withSubject(item)
		keep, err := sub.eval(where)
		if err != nil {
			return nil, err
		}
		if truthy(keep) {
			out = append(out, item)
		}
	}
	return out, nil
}

// truthy mirrors the reference's Python-like truthiness: nil, false, 0,
// "", and empty sequences are falsy; everything else is truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

package ir

// Expr is the tagged union of the DSL's small expression language: enough
// to evaluate Assignment right-hand-sides, Call/RunAgent inputs, Loop/For
// bounds and iterables, and the binary/filter/field-access forms spec.md
// §4.5 names.
type Expr interface{ isExpr() }

// Lit is a literal string/number/bool/nil value.
type Lit struct{ Value any }

func (Lit) isExpr() {}

// VarRef reads vars[Name]. Name is stored without a leading "$" — spec.md
// §4.5's Context note: "there is no $ at runtime".
type VarRef struct{ Name string }

func (VarRef) isExpr() {}

// LastResult reads the context's last_result (spec.md §4.5 Context:
// "last_result: the most recent Call/RunAgent return value").
type LastResult struct{}

func (LastResult) isExpr() {}

// FieldAccess reads a named field off whatever Base evaluates to (a map or
// struct-like value). Also used as the implicit-subject ".field" access a
// Filter where-expr permits (spec.md §4.5 "Filter... with the element
// bound as the implicit subject for .field accesses").
type FieldAccess struct {
	Base  Expr
	Field string
}

func (FieldAccess) isExpr() {}

// ListLit constructs a list value from its elements, evaluated in order.
type ListLit struct{ Items []Expr }

func (ListLit) isExpr() {}

// BinaryOp applies Op ("+" or "-") to Left and Right (spec.md §4.5
// "BinaryOp"). "+": sequence+sequence concatenates, numeric+numeric adds;
// mixed types are a runtime error. "-": numeric subtraction only.
type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

func (BinaryOp) isExpr() {}

// Filter produces a new list of List's elements for which Where evaluates
// truthy, with the element itself as Where's implicit FieldAccess subject
// (spec.md §4.5 "Filter(list, where-expr)").
type Filter struct {
	List  Expr
	Where Expr
}

func (Filter) isExpr() {}

// Subject is the placeholder expression a Filter's Where tree uses in
// place of an explicit variable reference, standing for "the element
// currently being tested". FieldAccess{Base: Subject{}, Field: "x"} reads
// the element's "x" field.
type Subject struct{}

func (Subject) isExpr() {}

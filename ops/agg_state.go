package ops

import "heapdb/godb"

// AggState accumulates one aggregate column's value across a group of
// tuples.
type AggState interface {
	Init(alias string, expr Expr) error
	Copy() AggState
	AddTuple(t *godb.Tuple)
	Finalize() *godb.Tuple
	GetTupleDesc() *godb.TupleDesc
}

func aggDesc(alias string) *godb.TupleDesc {
	return &godb.TupleDesc{Fields: []godb.FieldDesc{{Name: alias, Ftype: godb.IntT()}}}
}

// CountAggState counts the tuples added, ignoring their value.
type CountAggState struct {
	alias string
	expr  Expr
	count int32
}

func (a *CountAggState) Init(alias string, expr Expr) error {
	a.alias, a.expr, a.count = alias, expr, 0
	return nil
}
func (a *CountAggState) Copy() AggState             { cp := *a; return &cp }
func (a *CountAggState) AddTuple(t *godb.Tuple)     { a.count++ }
func (a *CountAggState) GetTupleDesc() *godb.TupleDesc { return aggDesc(a.alias) }
func (a *CountAggState) Finalize() *godb.Tuple {
	t, _ := godb.NewTuple(*a.GetTupleDesc(), []godb.Field{godb.IntField{Value: a.count}})
	return t
}

// SumAggState sums an integer expression.
type SumAggState struct {
	alias string
	expr  Expr
	sum   int32
}

func (a *SumAggState) Init(alias string, expr Expr) error {
	a.alias, a.expr, a.sum = alias, expr, 0
	return nil
}
func (a *SumAggState) Copy() AggState { cp := *a; return &cp }
func (a *SumAggState) AddTuple(t *godb.Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(godb.IntField); ok {
		a.sum += iv.Value
	}
}
func (a *SumAggState) GetTupleDesc() *godb.TupleDesc { return aggDesc(a.alias) }
func (a *SumAggState) Finalize() *godb.Tuple {
	t, _ := godb.NewTuple(*a.GetTupleDesc(), []godb.Field{godb.IntField{Value: a.sum}})
	return t
}

// AvgAggState averages an integer expression, truncating toward zero like
// ordinary integer division.
type AvgAggState struct {
	alias string
	expr  Expr
	sum   int32
	count int32
}

func (a *AvgAggState) Init(alias string, expr Expr) error {
	a.alias, a.expr, a.sum, a.count = alias, expr, 0, 0
	return nil
}
func (a *AvgAggState) Copy() AggState { cp := *a; return &cp }
func (a *AvgAggState) AddTuple(t *godb.Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(godb.IntField); ok {
		a.sum += iv.Value
		a.count++
	}
}
func (a *AvgAggState) GetTupleDesc() *godb.TupleDesc { return aggDesc(a.alias) }
func (a *AvgAggState) Finalize() *godb.Tuple {
	avg := int32(0)
	if a.count > 0 {
		avg = a.sum / a.count
	}
	t, _ := godb.NewTuple(*a.GetTupleDesc(), []godb.Field{godb.IntField{Value: avg}})
	return t
}

// MaxAggState tracks the maximum value of an expression, comparable by
// EvalPred so it works over both int and string fields.
type MaxAggState struct {
	alias   string
	expr    Expr
	maximum godb.Field
}

func (a *MaxAggState) Init(alias string, expr Expr) error {
	a.alias, a.expr, a.maximum = alias, expr, nil
	return nil
}
func (a *MaxAggState) Copy() AggState { cp := *a; return &cp }
func (a *MaxAggState) AddTuple(t *godb.Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.maximum == nil || EvalPred(v, a.maximum, OpGt) {
		a.maximum = v
	}
}
func (a *MaxAggState) GetTupleDesc() *godb.TupleDesc {
	return &godb.TupleDesc{Fields: []godb.FieldDesc{{Name: a.alias, Ftype: a.expr.Type()}}}
}
func (a *MaxAggState) Finalize() *godb.Tuple {
	t, _ := godb.NewTuple(*a.GetTupleDesc(), []godb.Field{a.maximum})
	return t
}

// MinAggState tracks the minimum value of an expression.
type MinAggState struct {
	alias   string
	expr    Expr
	minimum godb.Field
}

func (a *MinAggState) Init(alias string, expr Expr) error {
	a.alias, a.expr, a.minimum = alias, expr, nil
	return nil
}
func (a *MinAggState) Copy() AggState { cp := *a; return &cp }
func (a *MinAggState) AddTuple(t *godb.Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.minimum == nil || EvalPred(v, a.minimum, OpLt) {
		a.minimum = v
	}
}
func (a *MinAggState) GetTupleDesc() *godb.TupleDesc {
	return &godb.TupleDesc{Fields: []godb.FieldDesc{{Name: a.alias, Ftype: a.expr.Type()}}}
}
func (a *MinAggState) Finalize() *godb.Tuple {
	t, _ := godb.NewTuple(*a.GetTupleDesc(), []godb.Field{a.minimum})
	return t
}

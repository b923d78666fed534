package ops

import "heapdb/godb"

// AggregateField names one output column of an Aggregate: the expression
// it's computed from, the alias to report it under, and a constructor for
// a fresh, per-group accumulator.
type AggregateField struct {
	Expr     Expr
	Alias    string
	NewState func() AggState
}

// Aggregate groups its child's tuples by groupByField (nil for a single,
// ungrouped group) and computes each AggregateField independently per
// group. Unlike the other operators here, Iterator is a terminal,
// materializing operation: it drains the child and computes every group's
// final result before the first call returns, rather than handing back a
// lazily advancing cursor over live accumulator state. Finalize is only
// ever called once per group, so there is no shared mutable slot for a
// second pass to disturb.
type Aggregate struct {
	child        Operator
	groupByField Expr
	fields       []AggregateField
}

func NewAggregate(child Operator, groupByField Expr, fields []AggregateField) *Aggregate {
	return &Aggregate{child: child, groupByField: groupByField, fields: fields}
}

func (a *Aggregate) Descriptor() *godb.TupleDesc {
	fields := make([]godb.FieldDesc, 0, len(a.fields)+1)
	if a.groupByField != nil {
		fields = append(fields, godb.FieldDesc{Name: "group", Ftype: a.groupByField.Type()})
	}
	for _, af := range a.fields {
		st := af.NewState()
		st.Init(af.Alias, af.Expr)
		fields = append(fields, st.GetTupleDesc().Fields...)
	}
	return &godb.TupleDesc{Fields: fields}
}

type aggGroup struct {
	keyVal godb.Field
	states []AggState
}

func (a *Aggregate) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := a.child.Iterator(tid)
	if err != nil {
		return nil, err
	}

	groups := make(map[any]*aggGroup)
	var order []any

	for {
		t, err := childIter()
		if err != nil {
			return nil, err
		}
		if t == nil {
			break
		}

		var key any = struct{}{}
		var keyVal godb.Field
		if a.groupByField != nil {
			keyVal, err = a.groupByField.EvalExpr(t)
			if err != nil {
				return nil, err
			}
			key = fieldHashKey(keyVal)
		}

		g, ok := groups[key]
		if !ok {
			states := make([]AggState, len(a.fields))
			for i, af := range a.fields {
				states[i] = af.NewState()
				if err := states[i].Init(af.Alias, af.Expr); err != nil {
					return nil, err
				}
			}
			g = &aggGroup{keyVal: keyVal, states: states}
			groups[key] = g
			order = append(order, key)
		}
		for _, st := range g.states {
			st.AddTuple(t)
		}
	}

	desc := a.Descriptor()
	results := make([]*godb.Tuple, 0, len(order))
	for _, key := range order {
		g := groups[key]
		fields := make([]godb.Field, 0, len(g.states)+1)
		if a.groupByField != nil {
			fields = append(fields, g.keyVal)
		}
		for _, st := range g.states {
			fields = append(fields, st.Finalize().Fields...)
		}
		rt, err := godb.NewTuple(*desc, fields)
		if err != nil {
			return nil, err
		}
		results = append(results, rt)
	}

	i := 0
	return func() (*godb.Tuple, error) {
		if i >= len(results) {
			return nil, nil
		}
		t := results[i]
		i++
		return t, nil
	}, nil
}

func fieldHashKey(f godb.Field) any {
	switch v := f.(type) {
	case godb.IntField:
		return v.Value
	case godb.StringField:
		return v.Value
	default:
		return f
	}
}

package ops

import (
	boom "github.com/tylertreat/BoomFilters"

	"heapdb/godb"
)

// Project evaluates selectFields against each child tuple, renaming them to
// outputNames. When distinct is set, duplicate output tuples are dropped.
type Project struct {
	selectFields []Expr
	outputNames  []string
	distinct     bool
	child        Operator
}

func NewProject(selectFields []Expr, outputNames []string, distinct bool, child Operator) (*Project, error) {
	if len(selectFields) != len(outputNames) {
		return nil, godb.Errorf(godb.DbErrorKind, "NewProject: got %d select fields but %d output names", len(selectFields), len(outputNames))
	}
	return &Project{selectFields: selectFields, outputNames: outputNames, distinct: distinct, child: child}, nil
}

func (p *Project) Descriptor() *godb.TupleDesc {
	fields := make([]godb.FieldDesc, len(p.selectFields))
	for i, e := range p.selectFields {
		fields[i] = godb.FieldDesc{Name: p.outputNames[i], Ftype: e.Type()}
	}
	return &godb.TupleDesc{Fields: fields}
}

// Iterator projects every child tuple. The distinct path keeps a Bloom
// filter as a cheap pre-check ahead of an exact seen-set: a filter miss
// proves the tuple is new (emit immediately), while a filter hit still
// needs the exact map to rule out a false positive before the tuple is
// dropped.
func (p *Project) Iterator(tid godb.TransactionID) (func() (*godb.Tuple, error), error) {
	childIter, err := p.child.Iterator(tid)
	if err != nil {
		return nil, err
	}
	desc := p.Descriptor()

	var filter *boom.BloomFilter
	var seen map[string]struct{}
	if p.distinct {
		filter = boom.NewBloomFilter(10000, 0.01)
		seen = make(map[string]struct{})
	}

	return func() (*godb.Tuple, error) {
		for {
			t, err := childIter()
			if err != nil || t == nil {
				return nil, err
			}

			fields := make([]godb.Field, len(p.selectFields))
			for i, e := range p.selectFields {
				v, err := e.EvalExpr(t)
				if err != nil {
					return nil, err
				}
				fields[i] = v
			}
			out, err := godb.NewTuple(*desc, fields)
			if err != nil {
				return nil, err
			}

			if p.distinct {
				key := keyString(out)
				if !filter.TestAndAdd([]byte(key)) {
					seen[key] = struct{}{}
					return out, nil
				}
				if _, exact := seen[key]; exact {
					continue
				}
				seen[key] = struct{}{}
				return out, nil
			}

			return out, nil
		}
	}, nil
}

func keyString(t *godb.Tuple) string {
	var buf []byte
	for _, f := range t.Fields {
		switch v := f.(type) {
		case godb.IntField:
			buf = append(buf, byte(v.Value), byte(v.Value>>8), byte(v.Value>>16), byte(v.Value>>24))
		case godb.StringField:
			buf = append(buf, []byte(v.Value)...)
			buf = append(buf, 0)
		}
	}
	return string(buf)
}

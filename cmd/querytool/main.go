// querytool is a small demonstration CLI: it loads a CSV file into a heap
// table, parses a single-table "SELECT ... WHERE <comparison>" string with
// xwb1989/sqlparser, builds a Scan->Filter pipeline for the WHERE clause
// out of package ops, and prints the matching rows. It is scaffolding, not
// a query compiler: joins, projections, and boolean connectives in the
// WHERE clause are not supported.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/xwb1989/sqlparser"

	"heapdb/godb"
	"heapdb/ops"
)

func main() {
	csvPath := flag.String("csv", "", "CSV file to load")
	tablePath := flag.String("table", "querytool.tbl", "heap file path to load into")
	query := flag.String("query", "", `SELECT * FROM t WHERE field > 10`)
	flag.Parse()

	if *csvPath == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "usage: querytool -csv data.csv -query \"SELECT * FROM t WHERE field > 10\"")
		os.Exit(2)
	}

	desc, err := godb.NewTupleDesc(
		godb.FieldDesc{Name: "id", Ftype: godb.IntT()},
		godb.FieldDesc{Name: "name", Ftype: godb.StringT(32)},
		godb.FieldDesc{Name: "value", Ftype: godb.IntT()},
	)
	if err != nil {
		log.Fatal(err)
	}

	logger := log.New(os.Stderr, "querytool: ", log.LstdFlags)
	cfg := godb.DefaultConfig()
	bp := godb.NewBufferPool(cfg, godb.NullLogFile{}, logger)
	catalog := godb.NewCatalog()

	os.Remove(*tablePath)
	file, err := catalog.AddTable(bp, *tablePath, desc, "id")
	if err != nil {
		log.Fatal(err)
	}

	csv, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal(err)
	}
	defer csv.Close()
	if err := file.LoadFromCSV(csv, true, ",", false); err != nil {
		log.Fatal(err)
	}

	pred, err := parseWherePredicate(*query, desc)
	if err != nil {
		log.Fatal(err)
	}

	var plan ops.Operator = ops.NewScan(file)
	if pred != nil {
		plan = pred(plan)
	}

	tid := godb.NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		log.Fatal(err)
	}
	it, err := plan.Iterator(tid)
	if err != nil {
		log.Fatal(err)
	}
	for {
		t, err := it()
		if err != nil {
			bp.TransactionComplete(tid, false)
			log.Fatal(err)
		}
		if t == nil {
			break
		}
		fmt.Println(t.String())
	}
	bp.TransactionComplete(tid, true)
}

// parseWherePredicate parses query's WHERE clause, returning a function
// that wraps a Scan in the corresponding Filter. Returns a nil function
// when the statement has no WHERE clause.
func parseWherePredicate(query string, desc *godb.TupleDesc) (func(ops.Operator) ops.Operator, error) {
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, fmt.Errorf("querytool only supports SELECT statements")
	}
	if sel.Where == nil {
		return nil, nil
	}
	cmp, ok := sel.Where.Expr.(*sqlparser.ComparisonExpr)
	if !ok {
		return nil, fmt.Errorf("querytool only supports a single comparison in WHERE")
	}

	col, ok := cmp.Left.(*sqlparser.ColName)
	if !ok {
		return nil, fmt.Errorf("WHERE left-hand side must be a column")
	}
	left, err := ops.NewFieldExpr(desc, col.Name.String())
	if err != nil {
		return nil, err
	}

	right, err := literalExpr(cmp.Right, desc, col.Name.String())
	if err != nil {
		return nil, err
	}

	op, err := comparisonOp(cmp.Operator)
	if err != nil {
		return nil, err
	}

	return func(child ops.Operator) ops.Operator {
		f, _ := ops.NewFilter(left, op, right, child)
		return f
	}, nil
}

func literalExpr(e sqlparser.Expr, desc *godb.TupleDesc, colName string) (ops.Expr, error) {
	val, ok := e.(*sqlparser.SQLVal)
	if !ok {
		return nil, fmt.Errorf("WHERE right-hand side must be a literal")
	}
	idx, err := desc.FieldIndex(colName)
	if err != nil {
		return nil, err
	}
	ftype := desc.Fields[idx].Ftype
	switch val.Type {
	case sqlparser.IntVal:
		var n int64
		if _, err := fmt.Sscanf(string(val.Val), "%d", &n); err != nil {
			return nil, err
		}
		return &ops.ConstExpr{Value: godb.IntField{Value: int32(n)}}, nil
	case sqlparser.StrVal:
		return &ops.ConstExpr{Value: godb.StringField{Value: string(val.Val), Width: ftype.Len}}, nil
	default:
		return nil, fmt.Errorf("unsupported literal type in WHERE clause")
	}
}

func comparisonOp(op string) (ops.BoolOp, error) {
	switch op {
	case sqlparser.EqualStr:
		return ops.OpEq, nil
	case sqlparser.NotEqualStr:
		return ops.OpNe, nil
	case sqlparser.LessThanStr:
		return ops.OpLt, nil
	case sqlparser.LessEqualStr:
		return ops.OpLe, nil
	case sqlparser.GreaterThanStr:
		return ops.OpGt, nil
	case sqlparser.GreaterEqualStr:
		return ops.OpGe, nil
	default:
		return 0, fmt.Errorf("unsupported WHERE operator %q", op)
	}
}

// repl is an interactive shell for poking at a single heap table: scan it,
// filter it on one field, and insert "<id> <name>" rows, one line at a time.
// It exists to exercise the storage core by hand, not as a SQL front end.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"heapdb/godb"
	"heapdb/ops"
)

func main() {
	path := "repl.tbl"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	desc, err := godb.NewTupleDesc(
		godb.FieldDesc{Name: "id", Ftype: godb.IntT()},
		godb.FieldDesc{Name: "name", Ftype: godb.StringT(32)},
	)
	if err != nil {
		log.Fatal(err)
	}

	sessionID := uuid.New()
	logger := log.New(os.Stderr, fmt.Sprintf("repl[%s]: ", sessionID.String()[:8]), log.LstdFlags)
	cfg := godb.DefaultConfig()
	bp := godb.NewBufferPool(cfg, godb.NullLogFile{}, logger)
	catalog := godb.NewCatalog()
	file, err := catalog.AddTable(bp, path, desc, "id")
	if err != nil {
		log.Fatal(err)
	}

	rl, err := readline.New("heapdb> ")
	if err != nil {
		log.Fatal(err)
	}
	defer rl.Close()

	fmt.Printf("session %s, table %s\n", sessionID, path)
	fmt.Println("commands: scan | insert <id> <name> | filter <id|name> = <value> | quit")

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			log.Fatal(err)
		}
		if err := runCommand(bp, catalog, file, desc, strings.TrimSpace(line)); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func runCommand(bp *godb.BufferPool, catalog *godb.Catalog, file *godb.HeapFile, desc *godb.TupleDesc, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	tid := godb.NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		return err
	}

	switch fields[0] {
	case "quit", "exit":
		os.Exit(0)
		return nil

	case "scan":
		scan := ops.NewScan(file)
		it, err := scan.Iterator(tid)
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		for {
			t, err := it()
			if err != nil {
				bp.TransactionComplete(tid, false)
				return err
			}
			if t == nil {
				break
			}
			fmt.Println(t.String())
		}
		return bp.TransactionComplete(tid, true)

	case "insert":
		if len(fields) != 3 {
			bp.TransactionComplete(tid, false)
			return fmt.Errorf("usage: insert <id> <name>")
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		t, err := godb.NewTuple(*desc, []godb.Field{
			godb.IntField{Value: int32(id)},
			godb.StringField{Value: fields[2], Width: desc.Fields[1].Ftype.Len},
		})
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		if err := bp.InsertTuple(tid, file.TableID(), t); err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		return bp.TransactionComplete(tid, true)

	case "filter":
		if len(fields) != 4 || fields[2] != "=" {
			bp.TransactionComplete(tid, false)
			return fmt.Errorf("usage: filter <id|name> = <value>")
		}
		left, err := ops.NewFieldExpr(desc, fields[1])
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		right, err := literalFor(left, fields[3])
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		filter, err := ops.NewFilter(left, ops.OpEq, right, ops.NewScan(file))
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		it, err := filter.Iterator(tid)
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		for {
			t, err := it()
			if err != nil {
				bp.TransactionComplete(tid, false)
				return err
			}
			if t == nil {
				break
			}
			fmt.Println(t.String())
		}
		return bp.TransactionComplete(tid, true)

	default:
		bp.TransactionComplete(tid, false)
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func literalFor(field *ops.FieldExpr, raw string) (ops.Expr, error) {
	if field.Type().Kind == godb.IntType {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		return &ops.ConstExpr{Value: godb.IntField{Value: int32(n)}}, nil
	}
	return &ops.ConstExpr{Value: godb.StringField{Value: raw, Width: field.Type().Len}}, nil
}

// Command uuidtreectl is the operator-facing utility spec.md §6 calls for:
// a narrow surface over the analyzer and rescue passes, replacing the
// teacher's interactive REPL (main.go/command.go/statement.go/io.go) with
// the two operations that make sense to run against a tree file from the
// outside.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	pageSize  int
	metaSize  int
	order     uint32
	valueSize uint32
	refOrder  uint32
	itemOrder uint32
	kindFlag  string
	verbose   bool
)

func main() {
	root := &cobra.Command{
		Use:   "uuidtreectl",
		Short: "Inspect and rescue uuidbtree files",
	}
	root.PersistentFlags().IntVar(&pageSize, "page-size", 4096, "page size the file was created with")
	root.PersistentFlags().IntVar(&metaSize, "meta-size", 64, "meta block size the file was created with")
	root.PersistentFlags().Uint32Var(&order, "order", 64, "leaf/leaf-record order")
	root.PersistentFlags().Uint32Var(&valueSize, "value-size", 32, "fixed value width (simple) or item width (multi)")
	root.PersistentFlags().Uint32Var(&refOrder, "ref-order", 0, "interior reference order (defaults to order)")
	root.PersistentFlags().Uint32Var(&itemOrder, "item-order", 0, "items per chain page (multi-tree only, defaults to order)")
	root.PersistentFlags().StringVar(&kindFlag, "kind", "S", "tree kind: S (simple) or M (multi)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newStatsCmd())
	root.AddCommand(newRescueCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l
	}
	return zap.NewNop()
}

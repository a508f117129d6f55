package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"uuidbtree/analyze"
	"uuidbtree/node"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Scan a tree file and report per-kind page counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			st, err := analyze.ComputeStats(args[0], analyze.Options{PageSize: pageSize, MetaSize: metaSize, Logger: log})
			if err != nil {
				return err
			}

			fmt.Printf("kind:        %s\n", string(st.Kind))
			fmt.Printf("page size:   %d\n", st.PageSize)
			fmt.Printf("total pages: %d\n", st.TotalPages)
			fmt.Printf("root:        %d\n", st.Root)
			fmt.Printf("free head:   %d\n", st.FreeHead)
			fmt.Printf("records:     %d\n", st.Records)
			fmt.Printf("references:  %d\n", st.References)
			for _, k := range []node.Kind{node.KindStart, node.KindLeaf, node.KindStructure, node.KindRoot, node.KindData, node.KindItems, node.KindEmpty} {
				fmt.Printf("  %-10s %d pages\n", k.String(), len(st.PagesByKind[k]))
			}
			if len(st.Unknown) > 0 {
				fmt.Printf("  %-10s %d pages\n", "unknown", len(st.Unknown))
			}
			return nil
		},
	}
}

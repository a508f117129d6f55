package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"uuidbtree/analyze"
)

func newRescueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescue <in> <out>",
		Short: "Rebuild a fresh tree file from a physical scan of a damaged one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			opts := analyze.RescueOptions{
				PageSize:  pageSize,
				MetaSize:  metaSize,
				Kind:      []byte(kindFlag)[0],
				Order:     order,
				ValueSize: valueSize,
				RefOrder:  refOrder,
				ItemOrder: itemOrder,
				Logger:    log,
			}
			result, err := analyze.Rescue(args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Printf("inserted: %d\n", result.Inserted)
			fmt.Printf("skipped:  %d\n", result.Skipped)
			return nil
		},
	}
}

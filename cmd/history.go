package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclens/registry-cli/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history <member-id>",
	Short: "Print a member's extraction-log trail as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrap(err, "parse member id")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		entries, err := st.ListExtractionLog(ctx, model.EntityTypeMember, id)
		if err != nil {
			return eris.Wrap(err, "list extraction log")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

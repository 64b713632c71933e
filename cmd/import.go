package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/civiclens/registry-cli/internal/db"
	"github.com/civiclens/registry-cli/internal/model"
	"github.com/civiclens/registry-cli/internal/store"
)

var importFile string

// seedMember is one entry in the import YAML.
type seedMember struct {
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Party    string `yaml:"party"`
	District string `yaml:"district"`
	Verified bool   `yaml:"verified"`
}

type importDoc struct {
	Members []seedMember `yaml:"members"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load canonical members from a YAML seed file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importFile)
		if err != nil {
			return eris.Wrap(err, "read seed file")
		}
		var doc importDoc
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "parse seed file")
		}
		if len(doc.Members) == 0 {
			return eris.New("seed file has no members")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		// Postgres gets the COPY fast path; other drivers insert one by one.
		if ps, ok := st.(*store.PostgresStore); ok {
			n, err := copyMembers(cmd, ps, doc.Members)
			if err != nil {
				return err
			}
			zap.L().Info("import complete", zap.Int64("created", n))
			return nil
		}

		created := 0
		for _, sm := range doc.Members {
			if sm.Name == "" {
				continue
			}
			m := model.Member{
				Name:               sm.Name,
				Role:               sm.Role,
				Party:              sm.Party,
				District:           sm.District,
				IsManuallyVerified: sm.Verified,
			}
			if err := st.CreateMember(ctx, &m); err != nil {
				return eris.Wrapf(err, "create member %q", sm.Name)
			}
			created++
		}
		zap.L().Info("import complete", zap.Int("created", created))
		return nil
	},
}

func copyMembers(cmd *cobra.Command, ps *store.PostgresStore, members []seedMember) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(members))
	for _, sm := range members {
		if sm.Name == "" {
			continue
		}
		rows = append(rows, []any{
			sm.Name, sm.Role, sm.Party, sm.District, "", sm.Verified, int64(1), now, now,
		})
	}

	columns := []string{
		"name", "role", "party", "district", "source_url",
		"is_manually_verified", "version", "created_at", "updated_at",
	}
	n, err := db.CopyFrom(cmd.Context(), ps.Pool(), "members", columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "copy members")
	}
	return n, nil
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to YAML seed file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verifyName     string
	verifyRole     string
	verifyParty    string
	verifyDistrict string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <member-id>",
	Short: "Apply human corrections to a member and lock it against automated updates",
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

		member, err := st.GetMember(ctx, id)
		if err != nil {
			return eris.Wrap(err, "get member")
		}
		if member == nil {
			return eris.Errorf("member %d not found", id)
		}

		if verifyName != "" {
			member.Name = verifyName
		}
		if verifyRole != "" {
			member.Role = verifyRole
		}
		if verifyParty != "" {
			member.Party = verifyParty
		}
		if verifyDistrict != "" {
			member.District = verifyDistrict
		}

		if err := st.VerifyMember(ctx, member); err != nil {
			return eris.Wrap(err, "verify member")
		}

		zap.L().Info("member verified",
			zap.Int64("id", id),
			zap.String("name", member.Name),
		)
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyName, "name", "", "corrected name")
	verifyCmd.Flags().StringVar(&verifyRole, "role", "", "corrected role")
	verifyCmd.Flags().StringVar(&verifyParty, "party", "", "corrected party")
	verifyCmd.Flags().StringVar(&verifyDistrict, "district", "", "corrected district")
	rootCmd.AddCommand(verifyCmd)
}

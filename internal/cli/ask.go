package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"salesforce-query-workers/internal/models"
	"salesforce-query-workers/internal/pipeline"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question by generating and running a SOQL query",
		Example: `  crm-query ask "how many open cases do I have"
  crm-query ask --owner 005000000000001AAA -o json "my opportunities closing this month"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if ownerID != "" && !models.IsSalesforceID(ownerID) {
				return fmt.Errorf("--owner %q is not a 15 or 18 character Salesforce id", ownerID)
			}

			orch := pipeline.NewOrchestrator(
				opts.env.Sessions(cfg),
				opts.env.Gateway(cfg),
				opts.logger(),
				pipeline.Options{OwnerID: cfg.Salesforce.OwnerID},
			)
			out := orch.Run(cmd.Context(), pipeline.Request{
				Text:    strings.Join(args, " "),
				OwnerID: ownerID,
			})
			return renderOutcome(cmd.OutOrStdout(), opts.output, out)
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "Salesforce user id used for ownership filters")
	return cmd
}

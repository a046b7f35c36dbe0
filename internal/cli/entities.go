package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"salesforce-query-workers/internal/models"
	"salesforce-query-workers/internal/pipeline"
)

func newEntitiesCommand(opts *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List the Salesforce objects offered to entity resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			session, err := opts.session(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			descriptors, err := session.ListDescribableEntities(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list objects: %w", err)
			}
			if !all {
				eligible := make([]models.EntityDescriptor, 0, len(descriptors))
				for _, d := range descriptors {
					if d.Eligible() {
						eligible = append(eligible, d)
					}
				}
				descriptors = eligible
			}
			return renderEntities(cmd.OutOrStdout(), opts.output, descriptors)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include objects that are not queryable or layoutable")
	return cmd
}

func newDescribeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <object>",
		Short: "Show the field metadata used for query generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			session, err := opts.session(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			raw, err := session.Describe(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to describe %s: %w", args[0], err)
			}
			return renderFields(cmd.OutOrStdout(), opts.output, pipeline.FilterFields(raw))
		},
	}
}

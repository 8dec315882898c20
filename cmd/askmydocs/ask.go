package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

func (c *cli) newAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			a.loadIndex(ctx)

			answer, err := a.answers.Ask(ctx, strings.Join(args, " "), topK)
			if errors.Is(err, domain.ErrUninitializedIndex) {
				answer, err = domain.NewNoDocumentsAnswer(), nil
			}
			if err != nil {
				return err
			}

			printAnswer(cmd, answer)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "passages to retrieve (default retrieval.top_k)")
	return cmd
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer) {
	out := cmd.OutOrStdout()
	heading := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(out, heading("Answer"))
	fmt.Fprintln(out, answer.Text)

	if len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("Sources"))
	for i, src := range answer.Sources {
		fmt.Fprintf(out, "  [%d] %s %s\n", i+1, src.Source, faint("("+src.Section+")"))
	}
}

package cli

import (
	"context"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/hearsay-dev/hearsay/pkg/cli/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdAsk() *cli.Command {
	var venueID string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var pipelineCfg config.Pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "venue-id",
			Usage:       "Venue to ask about",
			Required:    true,
			Sources:     cli.EnvVars("HEARSAY_VENUE_ID"),
			Destination: &venueID,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a question about a venue from its indexed reviews",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question argument is required")
			}

			uc, cleanup, err := buildUseCases(ctx, c, &geminiCfg, &repoCfg, &pipelineCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ans, err := uc.Query.Ask(ctx, types.VenueID(venueID), question)
			if err != nil {
				return goerr.Wrap(err, "query failed")
			}

			if ans.Refused {
				color.New(color.FgYellow, color.Bold).Println("No answer")
				color.New(color.FgWhite).Printf("  %s\n", ans.Text)
				return nil
			}

			color.New(color.FgCyan, color.Bold).Println("Answer")
			color.New(color.FgHiWhite).Printf("  %s\n\n", ans.Text)
			if ans.Hedged {
				color.New(color.FgYellow).Println("  (low confidence, treat as a weak signal)")
			}
			color.New(color.FgWhite).Printf("  confidence: %.2f, evidence: %d review(s)\n",
				ans.Confidence, ans.EvidenceCount)

			color.New(color.FgCyan).Println("\nCited reviews:")
			for _, cite := range ans.Citations {
				color.New(color.FgWhite).Printf("  [%s] %q\n", shortID(cite.ChunkID), cite.Quote)
			}

			return nil
		},
	}
}

func shortID(id types.ChunkID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"

	"github.com/hearsay-dev/hearsay/pkg/cli/config"
	"github.com/hearsay-dev/hearsay/pkg/domain/model"
	"github.com/hearsay-dev/hearsay/pkg/domain/types"
	"github.com/hearsay-dev/hearsay/pkg/usecase"
	"github.com/hearsay-dev/hearsay/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdIndex() *cli.Command {
	var venueID string
	var input string
	var replace bool
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var pipelineCfg config.Pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "venue-id",
			Usage:       "Venue to index the reviews under",
			Required:    true,
			Sources:     cli.EnvVars("HEARSAY_VENUE_ID"),
			Destination: &venueID,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Review file in JSON Lines format, one review per line (- for stdin)",
			Value:       "-",
			Destination: &input,
		},
		&cli.BoolFlag{
			Name:        "replace",
			Usage:       "Rebuild the venue index from scratch instead of adding to it",
			Destination: &replace,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:  "index",
		Usage: "Chunk, embed and index a batch of reviews for a venue",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			reviews, err := readReviews(ctx, input)
			if err != nil {
				return err
			}

			uc, cleanup, err := buildUseCases(ctx, c, &geminiCfg, &repoCfg, &pipelineCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := uc.Index.Index(ctx, types.VenueID(venueID), reviews,
				usecase.IndexOption{Replace: replace})
			if err != nil {
				return goerr.Wrap(err, "indexing failed")
			}

			color.New(color.FgCyan, color.Bold).Printf("Venue %s indexed\n", result.VenueID)
			color.New(color.FgWhite).Printf("  reviews indexed: %d\n", result.ReviewsIndexed)
			color.New(color.FgWhite).Printf("  chunks indexed:  %d\n", result.ChunksIndexed)
			if result.Malformed > 0 {
				color.New(color.FgYellow).Printf("  malformed (skipped):   %d\n", result.Malformed)
			}
			if result.Unchunkable > 0 {
				color.New(color.FgYellow).Printf("  unchunkable (skipped): %d\n", result.Unchunkable)
			}

			return nil
		},
	}
}

// readReviews loads a JSON Lines review file, one review object per line
func readReviews(ctx context.Context, input string) ([]*model.Review, error) {
	var r io.Reader
	if input == "-" {
		r = os.Stdin
	} else {
		// #nosec G304 - path is expected to be provided by CLI argument
		f, err := os.Open(input)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open review file", goerr.V("path", input))
		}
		defer safe.Close(ctx, f)
		r = f
	}

	var reviews []*model.Review
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var review model.Review
		if err := json.Unmarshal(raw, &review); err != nil {
			return nil, goerr.Wrap(err, "failed to parse review line",
				goerr.V("path", input), goerr.V("line", line))
		}
		reviews = append(reviews, &review)
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read review file", goerr.V("path", input))
	}
	if len(reviews) == 0 {
		return nil, goerr.New("no reviews in input", goerr.V("path", input))
	}

	return reviews, nil
}

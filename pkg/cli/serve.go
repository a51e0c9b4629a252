package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/hearsay-dev/hearsay/pkg/cli/config"
	httpctrl "github.com/hearsay-dev/hearsay/pkg/controller/http"
	"github.com/hearsay-dev/hearsay/pkg/service/answer"
	"github.com/hearsay-dev/hearsay/pkg/service/embedding"
	"github.com/hearsay-dev/hearsay/pkg/usecase"
	"github.com/hearsay-dev/hearsay/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var pipelineCfg config.Pipeline

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("HEARSAY_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := buildUseCases(ctx, c, &geminiCfg, &repoCfg, &pipelineCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}

// buildUseCases wires the repository, embedding and generation services for
// commands that run the full pipeline. The returned cleanup closes the
// repository.
func buildUseCases(ctx context.Context, c *cli.Command, geminiCfg *config.Gemini, repoCfg *config.Repository, pipelineCfg *config.Pipeline) (*usecase.UseCases, func(), error) {
	pipeline, err := pipelineCfg.Configure(c)
	if err != nil {
		return nil, nil, err
	}

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to configure Gemini client")
	}
	if llmClient == nil {
		return nil, nil, goerr.New("gemini-project is required")
	}

	embedder, err := embedding.New(llmClient, pipeline)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create embedding service")
	}

	generator, err := answer.New(llmClient)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create answer service")
	}

	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}
	cleanup := func() {
		if err := repo.Close(); err != nil {
			logging.Default().Error("failed to close repository", "error", err.Error())
		}
	}

	uc := usecase.New(repo, embedder, generator, usecase.WithPipelineConfig(pipeline))

	return uc, cleanup, nil
}

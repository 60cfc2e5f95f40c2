package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/config"
)

// #region main

func main() {
	if err := newRoot().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var resume bool
	root := &cobra.Command{
		Use:           "controller",
		Short:         "Persona conversation controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&resume, "resume", false, "resume the active conversation from STATE_DB")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Talk to the persona from the terminal",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(resume, func(rt *runtime) error {
					return runChat(cmd.Context(), rt, cmd.InOrStdin(), cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Expose the control surface over HTTP",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRuntime(resume, func(rt *runtime) error {
					return runServe(cmd.Context(), rt)
				})
			},
		},
	)
	return root
}

// withRuntime loads configuration, builds the runtime and tears it down after fn.
func withRuntime(resume bool, fn func(*runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}
	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingCredentials) {
			log.Fatal().Err(err).Msg("image generation is not configured")
		}
		log.Error().Err(err).Msg("invalid config")
		return err
	}

	rt, err := newRuntime(cfg, resume)
	if err != nil {
		log.Error().Err(err).Msg("failed to start controller")
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// #endregion main

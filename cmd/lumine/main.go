package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MahanRahmati/lumine/internal/app"
	"github.com/MahanRahmati/lumine/internal/config"
	"github.com/MahanRahmati/lumine/internal/logging"
	"github.com/MahanRahmati/lumine/internal/whisper"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		cfgPath string
		verbose bool
		asJSON  bool
	)

	root := &cobra.Command{
		Use:   "lumine",
		Short: "Lumine — voice capture and transcription from the command line",
		Long: `Lumine records from the microphone until you stop talking, hands the
audio to whisper.cpp and prints the transcript.

Run it with no arguments for the full record-and-transcribe loop.
Recording stops on its own after the configured stretch of silence, or
at the maximum recording duration. Ctrl-C aborts and removes the
partial file.

Key commands:
  transcribe --file <path>  Transcribe an existing audio file
  record                    Record without transcribing
  devices                   List audio input devices
  doctor                    Check ffmpeg, config, model and service health
  reset-config              Write a fresh default config`,
		Example: `  lumine
  lumine --json
  lumine transcribe --file meeting.wav
  lumine record
  lumine devices
  lumine doctor`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment(cfgPath, verbose)
			if err != nil {
				return err
			}
			backend, err := whisper.New(cfg, logger)
			if err != nil {
				return err
			}
			text, err := app.New(cfg, logger, backend).RecordAndTranscribe(cmd.Context())
			if err != nil {
				return err
			}
			return printTranscript(text, asJSON)
		},
	}

	root.Version = version
	root.SetVersionTemplate("Lumine v{{.Version}}\n")

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (TOML). Defaults to ~/.config/lumine/config.toml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
	root.Flags().BoolVar(&asJSON, "json", false, `Print the transcript as {"text": ...}`)

	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(NewTranscribeCmd(&cfgPath, &verbose))
	root.AddCommand(NewRecordCmd(&cfgPath, &verbose))
	root.AddCommand(NewDevicesCmd())
	root.AddCommand(NewDoctorCmd(&cfgPath))
	root.AddCommand(NewResetConfigCmd(&cfgPath))

	return root.ExecuteContext(ctx)
}

// loadEnvironment loads config, applies the --verbose override and sets up
// logging. Every command that records or transcribes starts here.
func loadEnvironment(cfgPath string, verbose bool) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	if verbose {
		cfg.General.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	logger, err := logging.Configure(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// printTranscript writes the transcript to stdout, as plain text or as a
// single JSON object when --json is set.
func printTranscript(text string, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(struct {
			Text string `json:"text"`
		}{Text: text})
	}
	fmt.Println(text)
	return nil
}

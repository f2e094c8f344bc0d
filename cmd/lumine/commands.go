package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MahanRahmati/lumine/internal/app"
	"github.com/MahanRahmati/lumine/internal/config"
	"github.com/MahanRahmati/lumine/internal/doctor"
	"github.com/MahanRahmati/lumine/internal/ffmpeg"
	"github.com/MahanRahmati/lumine/internal/whisper"

	"github.com/spf13/cobra"
)

// NewTranscribeCmd transcribes a file that already exists on disk.
func NewTranscribeCmd(cfgPath *string, verbose *bool) *cobra.Command {
	var (
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "transcribe --file <path>",
		Short: "Transcribe an existing audio file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment(*cfgPath, *verbose)
			if err != nil {
				return err
			}
			backend, err := whisper.New(cfg, logger)
			if err != nil {
				return err
			}
			text, err := app.New(cfg, logger, backend).TranscribeFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			return printTranscript(text, asJSON)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Audio file to transcribe")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&asJSON, "json", false, `Print the transcript as {"text": ...}`)
	return cmd
}

// NewRecordCmd records one take and keeps it, without transcribing.
func NewRecordCmd(cfgPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone without transcribing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadEnvironment(*cfgPath, *verbose)
			if err != nil {
				return err
			}
			path, err := app.New(cfg, logger, nil).RecordOnly(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("File saved in: %s\n", path)
			fmt.Println("Format: 16kHz mono WAV (Whisper-ready)")
			return nil
		},
	}
}

// NewDevicesCmd lists the capture devices the recorder can use.
func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"mics"},
		Short:   "List audio input devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			devices, err := ffmpeg.ListInputDevices(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				type device struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}
				out := make([]device, 0, len(devices))
				for _, d := range devices {
					out = append(out, device{ID: d.ID, Name: d.Name})
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}
			if len(devices) == 0 {
				fmt.Println("no audio input devices found")
				return nil
			}
			for _, d := range devices {
				fmt.Printf("[%s] %s\n", d.ID, d.Name)
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check ffmpeg, config, model and service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			results := doctor.Run(cmd.Context(), cfg)
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
				}
				fmt.Printf("%-12s %-4s %s\n", r.Name, status, r.Detail)
			}
			if !doctor.Healthy(results) {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
}

// NewResetConfigCmd rewrites the config file with default values.
func NewResetConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-config",
		Short: "Reset configuration to default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Reset(*cfgPath)
			if err != nil {
				return fmt.Errorf("failed to reset configuration: %w", err)
			}
			fmt.Println("Configuration has been reset to default values.")
			fmt.Printf("File: %s\n", path)
			return nil
		},
	}
}

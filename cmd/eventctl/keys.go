package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"botevents-api/internal/codec"
	"botevents-api/internal/service"
)

func deriveCmd() *cobra.Command {
	var (
		secret string
		botID  int64
		at     string
	)

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the API key a bot must send for the current window",
		Example: `  API_SHARED_SECRET=... eventctl derive --bot 100
  eventctl derive --bot 100 --at 2026-01-02T15:04:05Z --secret s3cret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := service.NewAPIKeyService(secret)
			if err != nil {
				return fmt.Errorf("API_SHARED_SECRET or --secret is required: %w", err)
			}

			t := time.Now()
			if at != "" {
				if t, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			window := keys.Window(t)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", keys.Derive(window, botID))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("API_SHARED_SECRET"), "shared secret (default $API_SHARED_SECRET)")
	cmd.Flags().Int64Var(&botID, "bot", 0, "bot id")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 time to derive for (default now)")
	_ = cmd.MarkFlagRequired("bot")

	return cmd
}

func codecSecretDefault() string {
	if s := os.Getenv("CODEC_SECRET"); s != "" {
		return s
	}
	return os.Getenv("XOR_KEY")
}

func encodeCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Wrap a JSON payload in an event envelope",
		Long:  "Reads a JSON payload from file, or stdin when no file is given, and prints the envelope a bot would send.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec.New(secret)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var payload json.RawMessage
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("payload is not valid JSON: %w", err)
			}

			envelope, err := c.EncodeEnvelope(payload, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", envelope)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", codecSecretDefault(), "codec secret (default $CODEC_SECRET or $XOR_KEY)")
	return cmd
}

func decodeCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Print the JSON payload carried by an event envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := codec.New(secret)
			if err != nil {
				return err
			}

			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var payload json.RawMessage
			if err := c.DecodeEnvelope(raw, &payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", payload)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", codecSecretDefault(), "codec secret (default $CODEC_SECRET or $XOR_KEY)")
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-iso20022/internal/config"
	"github.com/sirosfoundation/go-iso20022/internal/server"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an ISO 20022 document",
		Long: `Validate parses a document and runs structural and business rule
validation on it. The command fails when any defect is found.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
	cmd.Flags().String("type", "", "Message type hint, e.g. pacs.008.001.08")
	cmd.Flags().String("profile", "standard", "Business rule profile (standard or simplified)")
	cmd.Flags().String("schemas", "", "Directory of shape schemas consulted before the embedded ones")
	cmd.Flags().Bool("no-schema", false, "Skip structural validation")
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	hint, _ := cmd.Flags().GetString("type")
	profile, _ := cmd.Flags().GetString("profile")
	schemas, _ := cmd.Flags().GetString("schemas")
	noSchema, _ := cmd.Flags().GetBool("no-schema")
	asJSON, _ := cmd.Flags().GetBool("json")

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	cfg := config.Default().ISO20022
	cfg.Validation.Profile = profile
	cfg.SchemaPath = schemas
	if noSchema {
		disabled := false
		cfg.ValidateSchema = &disabled
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	opts, err := pipelineOptions(cfg, logger)
	if err != nil {
		return err
	}

	o, err := processor.New(opts...).Validate(context.Background(), hint, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(server.NewValidationResponse(o.Result)); err != nil {
			return err
		}
	} else {
		printResult(out, args[0], o)
	}

	if n := len(o.Result.Errors); n > 0 {
		return fmt.Errorf("%s: %d validation errors", args[0], n)
	}
	return nil
}

func printResult(w io.Writer, name string, o *processor.Outcome) {
	r := o.Result
	fmt.Fprintf(w, "%s: %s %s %s\n", name, r.MessageType, r.MessageID, r.Status)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
		if e.Path != "" {
			fmt.Fprintf(w, "         at %s\n", e.Path)
		}
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/logger"
	"github.com/stemsi/exstem-ingest/internal/model"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ingest",
		Short:        "Import an exam result file offline",
		SilenceUsage: true,
	}
	root.AddCommand(
		importCmd("run", "Parse, match, score and commit; writes the commit payload as JSON", true),
		importCmd("preflight", "Stop after validation; writes the preflight report as JSON", false),
	)
	return root
}

func importCmd(use, short string, commit bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <results-file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd(cmd, args[0], commit)
		},
	}
	f := cmd.Flags()
	f.StringP("profile", "p", "", "Exam profile file (yaml or json)")
	f.StringP("roster", "r", "", "Roster CSV (student_number, national_id, full_name, class_name)")
	f.String("delimiter", "", "Force a field delimiter (default: detect)")
	f.String("header", "auto", "Header row: auto, yes, no")
	f.String("sheet", "", "Worksheet of an xlsx workbook (default: first)")
	f.Bool("fixed-width", false, "Parse with the profile's fixed-width layout")
	f.StringSlice("override", nil, "Column role override col=role (repeatable)")
	f.StringSlice("accept", nil, "Accept blocking issues of an overridable kind (repeatable)")
	f.StringSlice("assign", nil, "Bind a parked row to a student, row=student_id (repeatable)")
	f.String("rounding", "", "Net rounding: total, subject, none (default from NET_ROUNDING)")
	f.String("lang", "", "Diagnostic language: en, tr (default from DIAGNOSTIC_LANG)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "pretty", "Log format (pretty, json)")

	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("roster")
	return cmd
}

// viperForCmd binds a command's flags and INGEST_* environment variables.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func runCmd(cmd *cobra.Command, input string, commit bool) error {
	v := viperForCmd(cmd)
	log := logger.New(os.Stderr, v.GetString("log-level"), v.GetString("log-format"))

	cfg := config.Load().Import
	if r := v.GetString("rounding"); r != "" {
		cfg.NetRounding = r
	}
	if l := v.GetString("lang"); l != "" {
		cfg.DiagnosticLang = l
	}

	opts := runOptions{
		Input:      input,
		Profile:    v.GetString("profile"),
		Roster:     v.GetString("roster"),
		Delimiter:  v.GetString("delimiter"),
		Header:     v.GetString("header"),
		Sheet:      v.GetString("sheet"),
		FixedWidth: v.GetBool("fixed-width"),
		Commit:     commit,
	}
	var err error
	if opts.Overrides, err = parseOverrides(v.GetStringSlice("override")); err != nil {
		return err
	}
	if opts.Assignments, err = parseAssignments(v.GetStringSlice("assign")); err != nil {
		return err
	}
	for _, k := range v.GetStringSlice("accept") {
		opts.Accept = append(opts.Accept, model.IssueKind(strings.TrimSpace(k)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := runImport(ctx, cfg, opts, log)

	out := io.Writer(os.Stdout)
	if path := v.GetString("output"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	var doc any
	switch {
	case res.Payload != nil:
		doc = res.Payload
	case res.Preflight != nil:
		doc = res.Preflight
	case res.Fatal != nil:
		doc = res.Fatal
	}
	if doc != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, model.ErrBlockingIssues) && res.Preflight != nil {
			for _, is := range res.Preflight.Errors {
				log.Error().Str("kind", string(is.Kind)).Msg(is.Message)
			}
		}
		return runErr
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/rewrite"
)

func newAnalyzeCmd() *cobra.Command {
	var children []string
	cmd := &cobra.Command{
		Use:   "analyze [text|-]",
		Short: "Print the communication pattern analysis of a message",
		Long: `Analyze a message without calling any model and print the result as JSON.

Examples:
  mediatord analyze "You always forget the schedule."
  mediatord analyze --child Emma "Tell your dad he's late again."
  cat draft.txt | mediatord analyze -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				Analysis   analyzer.Analysis `json:"analysis"`
				QuickCheck bool              `json:"quick_check"`
				Category   string            `json:"category"`
			}{
				Analysis:   analyzer.Analyze(text, analyzer.Options{ChildNames: children}),
				QuickCheck: analyzer.QuickCheck(text),
				Category:   rewrite.DetectCategory(text, nil),
			})
		},
	}
	cmd.Flags().StringSliceVar(&children, "child", nil, "child name to detect (repeatable)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var fallback bool
	cmd := &cobra.Command{
		Use:   "validate [text|-]",
		Short: "Check that a rewrite keeps the sender's perspective",
		Long: `Validate a candidate rewrite and print the result as JSON. With
--fallback the built-in rewrites for the message's category are printed
instead.

Examples:
  mediatord validate "I understand you're frustrated with me."
  mediatord validate --fallback "You never pay on time."`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			if fallback {
				return writeJSON(cmd.OutOrStdout(), rewrite.GetFallbackRewrites(text, nil))
			}
			return writeJSON(cmd.OutOrStdout(), rewrite.ValidateRewritePerspective(text))
		},
	}
	cmd.Flags().BoolVar(&fallback, "fallback", false, "print fallback rewrites for the message")
	return cmd
}

// readText takes the message from the argument, or stdin for "-" or no
// argument.
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text to inspect")
	}
	return text, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

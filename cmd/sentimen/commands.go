package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacesedan/sentimen/internal/app"
	"github.com/spacesedan/sentimen/internal/inference"
	"github.com/spacesedan/sentimen/internal/lexicon"
	"github.com/spacesedan/sentimen/internal/models"
	"github.com/spacesedan/sentimen/internal/preprocess"
	"github.com/spacesedan/sentimen/internal/review"
)

func normalizeCmd() *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "normalize TEXT...",
		Short: "Print the normalized form of a review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := preprocess.ParseProfile(profile)
			if err != nil {
				return err
			}
			var lex *lexicon.Lexicon
			if p == preprocess.ProfileVectorized {
				lex, err = lexicon.Load(cmd.Context(), lexicon.ProviderFor(cfg.CorpusDir), cfg.Language)
				if err != nil {
					return err
				}
			}
			n, err := preprocess.New(p, lex)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.Normalize(strings.Join(args, " ")))
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "vectorized", "Normalization profile (vectorized or sequence)")
	return cmd
}

func newService(ctx context.Context) (*review.Service, error) {
	analyzer, err := app.NewAnalyzer(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return review.NewService(analyzer, review.Options{}), nil
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify TEXT...",
		Short: "Classify a review with the configured engine",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Classify(cmd.Context(), models.ReviewRequest{Source: "cli", Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare TEXT...",
		Short: "Run every configured model on the same normalized review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			out, err := svc.Compare(cmd.Context(), models.ReviewRequest{Source: "cli", Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Normalized: %s\n", out.Normalized)
			for _, r := range out.Results {
				fmt.Fprintln(w)
				printResult(w, r)
			}
			return nil
		},
	}
}

func lexiconCmd() *cobra.Command {
	var list, retained bool
	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Show the effective stopword set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lex, err := lexicon.Load(cmd.Context(), lexicon.ProviderFor(cfg.CorpusDir), cfg.Language)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch {
			case list:
				for _, word := range lex.Stopwords() {
					fmt.Fprintln(w, word)
				}
			case retained:
				for _, word := range lex.Retained() {
					fmt.Fprintln(w, word)
				}
			default:
				fmt.Fprintf(w, "Language: %s\n", lex.Language())
				fmt.Fprintf(w, "Retained terms: v%s (%d)\n", lex.Version(), len(lex.Retained()))
				fmt.Fprintf(w, "Effective stopwords: %d\n", len(lex.Stopwords()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List the effective stopwords")
	cmd.Flags().BoolVar(&retained, "retained", false, "List the retained terms")
	return cmd
}

func fetchCorpusCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "fetch-corpus",
		Short: "Download the NLTK stopword corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = cfg.CorpusDir
			}
			if dir == "" {
				return fmt.Errorf("no target directory, set --dir or CORPUS_DIR")
			}
			path, err := lexicon.NewFetcher(cfg.CorpusURL).Fetch(cmd.Context(), dir, cfg.Language)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "NLTK data directory (defaults to CORPUS_DIR)")
	return cmd
}

func fetchModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-model [NAME]",
		Short: "Download a Hugging Face sequence classification model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := cfg.SequenceModel
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				name = inference.DefaultSequenceModel
			}
			path, err := inference.DownloadModel(name, cfg.ModelDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model available at %s\n", path)
			return nil
		},
	}
}

func printResult(w io.Writer, r models.ReviewResult) {
	fmt.Fprintf(w, "%s %s\n", r.Emoji, r.Label)
	fmt.Fprintln(w, r.Note)
	if r.HasConfidence {
		fmt.Fprintf(w, "Tingkat keyakinan: %.2f%%\n", r.Confidence)
	}
	fmt.Fprintf(w, "Model: %s\n", r.Model)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

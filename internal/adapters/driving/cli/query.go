package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// snippetRunes bounds the passage excerpt printed per result.
const snippetRunes = 280

var (
	queryTopK    int
	queryFilters []string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the indexed documents",
	Long: `Embeds the question and returns the most similar passages.

Filters restrict results by metadata. Repeating a key allows any of the
given values:

  sibila query "despido improcedente" -f tribunal=TS -f materia=social
  sibila query "desahucio" -f fecha=2021 -f fecha=2022 -k 5`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of results (default search.top_k setting)")
	queryCmd.Flags().StringArrayVarP(&queryFilters, "filter", "f", nil, "metadata filter as key=value (repeatable)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	text := strings.Join(args, " ")
	filter, err := parseFilterFlags(queryFilters)
	if err != nil {
		return err
	}

	results, err := queryService.Query(cmd.Context(), text, domain.QueryOptions{
		TopK:   topKOption(cmd, queryTopK),
		Filter: filter,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}
	outputQueryText(cmd, text, results)
	return nil
}

// parseFilterFlags turns repeated key=value flags into a filter.
func parseFilterFlags(flags []string) (domain.QueryFilter, error) {
	raw := make(map[string]any, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: filter %q must be key=value", domain.ErrInvalidArgument, f)
		}
		values, _ := raw[key].([]string)
		raw[key] = append(values, strings.TrimSpace(value))
	}
	return domain.ParseFilter(raw)
}

func outputQueryJSON(cmd *cobra.Command, results []domain.QueryResult) error {
	if results == nil {
		results = []domain.QueryResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputQueryText(cmd *cobra.Command, query string, results []domain.QueryResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.DocumentID, r.Score)
		if meta := formatMetadata(r.Metadata); meta != "" {
			cmd.Printf("      %s\n", meta)
		}
		if snippet := bestSnippet(r.Text, query); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
}

// bestSnippet returns the sentence of text closest to the query, cut to
// snippetRunes.
func bestSnippet(text, query string) string {
	sentences, best := domain.BestSentence(text, query)
	if best < 0 {
		return ""
	}
	s := []rune(sentences[best])
	if len(s) > snippetRunes {
		return string(s[:snippetRunes]) + "..."
	}
	return string(s)
}

// formatMetadata renders the legal metadata of a passage on one line,
// skipping the keys stamped by ingestion.
func formatMetadata(meta domain.Metadata) string {
	flat := meta.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		if k == domain.MetaDocID || k == domain.MetaChunkIndex {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + flat[k]
	}
	return strings.Join(parts, " ")
}

// topKOption returns the --top-k value only when the flag was given, so
// an explicit 0 reaches the service and is rejected there.
func topKOption(cmd *cobra.Command, value int) *int {
	if !cmd.Flags().Changed("top-k") {
		return nil
	}
	return domain.Limit(value)
}

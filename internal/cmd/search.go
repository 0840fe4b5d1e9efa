package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/palette/internal/extension"
	"github.com/runger/palette/internal/store"
	"github.com/runger/palette/internal/tui"
)

var (
	searchJSON  bool
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:     "search [query...]",
	Short:   "Search tabs, history and bookmarks",
	GroupID: groupCore,
	Long: `Run one palette query and print the ranked results.

Without a query, prints the initial results (open tabs by default).
A leading alias pins one source, just as in the palette.

Examples:
  palette search go docs          # Search every source
  palette search b hacker         # Search bookmarks only
  palette search ">"              # List commands
  palette search --json h go      # Output as JSON`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results (0 for all)")
	searchCmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto, always, or never")

	rootCmd.AddCommand(searchCmd)
}

type searchResponse struct {
	Query     string                   `json:"query"`
	Provider  string                   `json:"provider,omitempty"`
	Command   string                   `json:"command,omitempty"`
	Results   []extension.SearchResult `json:"results"`
	Total     int                      `json:"total"`
	Truncated bool                     `json:"truncated"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	applyColorMode()
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	p, err := openPalette(ctx, out)
	if err != nil {
		return err
	}
	defer p.Close()

	st, err := runQuery(ctx, p.session.Store, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if searchJSON {
		return writeSearchJSON(out, st, searchLimit)
	}
	writeResults(out, st.Results, searchLimit)
	return nil
}

// runQuery opens s and runs q the way typing it into the palette would.
func runQuery(ctx context.Context, s *store.Store, q string) (store.State, error) {
	if err := s.Open(ctx); err != nil {
		return s.State(), err
	}
	if q != "" {
		s.SetQuery(q)
		if err := s.FlushSearch(ctx); err != nil {
			return s.State(), err
		}
	}
	return s.State(), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeSearchJSON(w io.Writer, st store.State, limit int) error {
	results := st.Results
	truncated := false
	if limit > 0 && len(results) > limit {
		results = results[:limit]
		truncated = true
	}
	resp := searchResponse{
		Query:     st.Query,
		Provider:  st.ActiveProviderID,
		Command:   st.ActiveCommandID,
		Results:   results,
		Total:     len(st.Results),
		Truncated: truncated,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func writeResults(w io.Writer, results []extension.SearchResult, limit int) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	width := terminalWidth()
	shown := results
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for i, r := range shown {
		line := fmt.Sprintf("%2d  %s%s%s", i, colorBold, tui.Clean(r.Title), colorReset)
		if desc := tui.Clean(r.Description); desc != "" {
			room := width - len(tui.Clean(r.Title)) - 8
			if room > 8 {
				line += "  " + colorDim + tui.MiddleTruncate(desc, room) + colorReset
			}
		}
		fmt.Fprintln(w, line)
		fmt.Fprintf(w, "    %s%s%s\n", colorCyan, r.ID, colorReset)
	}
	if len(shown) < len(results) {
		fmt.Fprintf(w, "%s... %d more%s\n", colorDim, len(results)-len(shown), colorReset)
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobscout/internal/jobs"
)

type searchOutput struct {
	Success  bool                    `json:"success"`
	Career   string                  `json:"career"`
	Location string                  `json:"location"`
	Keyword  string                  `json:"keyword,omitempty"`
	CacheHit bool                    `json:"cache_hit"`
	Total    int                     `json:"total"`
	Sources  map[jobs.SourceName]int `json:"sources,omitempty"`
	Failed   []jobs.SourceName       `json:"failed,omitempty"`
	TimedOut []jobs.SourceName       `json:"timed_out,omitempty"`
	Jobs     []jobs.Listing          `json:"jobs"`
}

func newSearchCmd() *cobra.Command {
	var career, location string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Runs a single search and prints the listings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			career = strings.TrimSpace(career)
			if career == "" {
				return fmt.Errorf("--career is required")
			}
			location = strings.TrimSpace(location)
			if location == "" {
				location = jobs.DefaultLocation
			}

			listings, outcome, err := appInstance.Search(cmd.Context(), career, location)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if listings == nil {
				listings = []jobs.Listing{}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(searchOutput{
				Success:  true,
				Career:   career,
				Location: location,
				Keyword:  outcome.Keyword,
				CacheHit: outcome.CacheHit,
				Total:    len(listings),
				Sources:  outcome.PerSource,
				Failed:   outcome.Failed,
				TimedOut: outcome.TimedOut,
				Jobs:     listings,
			})
		},
	}
	cmd.Flags().StringVar(&career, "career", "", "career key from the catalog")
	cmd.Flags().StringVar(&location, "location", jobs.DefaultLocation, "location to search in")
	return cmd
}

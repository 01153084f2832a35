package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Review recommendation algorithm performance",
}

var analyticsDays int

var analyticsPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show per-algorithm CTR and engagement",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(fmt.Sprintf("/api/v1/analytics/performance?days=%d", analyticsDays))
	},
}

var analyticsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the overall analytics snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(fmt.Sprintf("/api/v1/analytics/stats?days=%d", analyticsDays))
	},
}

var analyticsTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the best-performing algorithm by CTR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON(fmt.Sprintf("/api/v1/analytics/top?days=%d", analyticsDays))
	},
}

func init() {
	analyticsCmd.PersistentFlags().IntVar(&analyticsDays, "days", 7, "Analysis window in days")

	analyticsCmd.AddCommand(analyticsPerformanceCmd)
	analyticsCmd.AddCommand(analyticsStatsCmd)
	analyticsCmd.AddCommand(analyticsTopCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elonfeng/extradar/pkg/opportunity"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "extradar",
		Short:         "Rank browser extension categories and find underserved opportunities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(importCmd())
	root.AddCommand(marketCmd())
	root.AddCommand(categoryCmd())
	root.AddCommand(opportunitiesCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

// filterFlags are the record filter shared by every view command.
type filterFlags struct {
	minUsers      int64
	maxUsers      int64
	ratingMin     float64
	ratingMax     float64
	excludeTopPct int
	lang          string
	name          string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.minUsers, "min-users", 0, "minimum users")
	cmd.Flags().Int64Var(&f.maxUsers, "max-users", -1, "maximum users (-1: unbounded)")
	cmd.Flags().Float64Var(&f.ratingMin, "rating-min", 0, "minimum rating")
	cmd.Flags().Float64Var(&f.ratingMax, "rating-max", 5, "maximum rating")
	cmd.Flags().IntVar(&f.excludeTopPct, "exclude-top", 0, "drop the top N percent of extensions by users (0-50)")
	cmd.Flags().StringVar(&f.lang, "lang", "", "language substring filter")
	cmd.Flags().StringVar(&f.name, "name", "", "extension name substring filter")
}

func (f *filterFlags) criteria() opportunity.Criteria {
	c := opportunity.Criteria{
		MinUsers:      f.minUsers,
		RatingMin:     f.ratingMin,
		RatingMax:     f.ratingMax,
		ExcludeTopPct: f.excludeTopPct,
		Language:      f.lang,
		Name:          f.name,
	}
	if f.maxUsers >= 0 {
		maxUsers := f.maxUsers
		c.MaxUsers = &maxUsers
	}
	return c.Normalize()
}

// viewFlags select ordering, page and output format.
type viewFlags struct {
	sort       string
	dir        string
	page       int
	pageSize   int
	jsonOutput bool
}

func (v *viewFlags) register(cmd *cobra.Command, sortHelp string) {
	cmd.Flags().StringVar(&v.sort, "sort", "", sortHelp)
	cmd.Flags().StringVar(&v.dir, "dir", "", "sort direction: asc or desc")
	cmd.Flags().IntVar(&v.page, "page", 1, "page number (1-based)")
	cmd.Flags().IntVar(&v.pageSize, "page-size", 0, "rows per page (default: from config)")
	cmd.Flags().BoolVar(&v.jsonOutput, "json", false, "output as JSON")
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML or JSON catalog dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0])
		},
	}
}

func marketCmd() *cobra.Command {
	var (
		filter filterFlags
		view   viewFlags
	)

	cmd := &cobra.Command{
		Use:   "market",
		Short: "Rank categories by demand and quality",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarket(cmd, filter.criteria(), view)
		},
	}

	filter.register(cmd)
	view.register(cmd, "total_users, extension_count, avg_rating, underserved_index or name")
	return cmd
}

func categoryCmd() *cobra.Command {
	var (
		filter filterFlags
		view   viewFlags
	)

	cmd := &cobra.Command{
		Use:   "category <id>",
		Short: "Explore one category's extensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCategory(cmd, args[0], filter.criteria(), view)
		},
	}

	filter.register(cmd)
	view.register(cmd, "users, rating, rating_gap, score or competition_count")
	return cmd
}

func opportunitiesCmd() *cobra.Command {
	var (
		filter filterFlags
		view   viewFlags
		limit  int
		notify bool
	)

	cmd := &cobra.Command{
		Use:   "opportunities",
		Short: "Show the cross-category opportunity leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpportunities(cmd, filter.criteria(), view, limit, notify)
		},
	}

	filter.register(cmd)
	view.register(cmd, "score, users, rating_gap or competition_count")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows ranked (default: from config)")
	cmd.Flags().BoolVar(&notify, "notify", false, "send the leaderboard as a digest to configured alerts")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with digest scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

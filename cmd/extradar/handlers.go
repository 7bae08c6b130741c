package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/extradar/internal/config"
	"github.com/elonfeng/extradar/internal/logging"
	"github.com/elonfeng/extradar/internal/scheduler"
	"github.com/elonfeng/extradar/internal/store"
	"github.com/elonfeng/extradar/pkg/alert"
	"github.com/elonfeng/extradar/pkg/catalog"
	"github.com/elonfeng/extradar/pkg/opportunity"
	"github.com/elonfeng/extradar/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// env is what every command needs: config, logger, store and engine.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *store.SQLiteStore
	engine *opportunity.Engine
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		db:     db,
		engine: opportunity.NewEngine(db, cfg.Scoring, cfg.Pagination, logger),
	}, nil
}

func (e *env) Close() error { return e.db.Close() }

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runImport(cmd *cobra.Command, path string) error {
	ds, err := catalog.LoadDataset(path)
	if err != nil {
		return err
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	counts, err := e.db.Import(cmd.Context(), ds)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	e.logger.Info("dataset imported",
		"path", path,
		"extensions", counts.Extensions,
		"rated", counts.RatedExtensions,
		"categories", counts.Categories,
		"links", counts.Links)
	return nil
}

func runMarket(cmd *cobra.Command, criteria opportunity.Criteria, v viewFlags) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	view, err := e.engine.Market(cmd.Context(), criteria, opportunity.MarketQuery{
		Sort:     v.sort,
		Dir:      v.dir,
		Page:     v.page,
		PageSize: v.pageSize,
	})
	if err != nil {
		return err
	}
	if v.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	return printMarket(cmd.OutOrStdout(), view)
}

func runCategory(cmd *cobra.Command, rawID string, criteria opportunity.Criteria, v viewFlags) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid category id %q", rawID)
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	view, err := e.engine.Category(cmd.Context(), id, criteria, opportunity.CategoryQuery{
		Sort:     v.sort,
		Dir:      v.dir,
		Page:     v.page,
		PageSize: v.pageSize,
	})
	if err != nil {
		return err
	}
	if v.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	return printCategory(cmd.OutOrStdout(), view)
}

func runOpportunities(cmd *cobra.Command, criteria opportunity.Criteria, v viewFlags, limit int, notify bool) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	view, err := e.engine.Opportunities(cmd.Context(), criteria, opportunity.OpportunityQuery{
		Sort:     v.sort,
		Dir:      v.dir,
		Limit:    limit,
		Page:     v.page,
		PageSize: v.pageSize,
	})
	if err != nil {
		return err
	}

	if notify {
		mgr := buildAlertManager(e.cfg)
		if !mgr.HasNotifiers() {
			return errors.New("no alert destinations configured")
		}
		n := alert.FromOpportunities(view, e.cfg.Digest.MinScore, time.Now())
		if n == nil {
			e.logger.Info("digest skipped, nothing above threshold", "min_score", e.cfg.Digest.MinScore)
		} else if err := mgr.Broadcast(cmd.Context(), n); err != nil {
			return fmt.Errorf("send digest: %w", err)
		} else {
			e.logger.Info("digest sent", "entries", len(n.Entries))
		}
	}

	if v.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), view)
	}
	return printOpportunities(cmd.OutOrStdout(), view)
}

func runServe(cmd *cobra.Command, port int) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if port == 0 {
		port = e.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(e.db, e.engine, port, e.logger)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runDaemon(cmd *cobra.Command, port int) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if port == 0 {
		port = e.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	alertMgr := buildAlertManager(e.cfg)
	if !alertMgr.HasNotifiers() {
		e.logger.Warn("no alert destinations configured, digests disabled")
	}
	sched := scheduler.New(e.engine, alertMgr, opportunity.DefaultCriteria(),
		e.cfg.Digest.ParseInterval(),
		e.cfg.Digest.Limit,
		e.cfg.Digest.MinScore,
		e.logger,
	)
	srv := server.New(e.db, e.engine, port, e.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	err = g.Wait()
	e.logger.Info("shutting down")
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMarket(out io.Writer, view *opportunity.MarketView) error {
	if view.Total == 0 {
		fmt.Fprintln(out, "no categories match (try importing data first: extradar import <file>)")
		return nil
	}

	fmt.Fprintf(out, "global avg rating: %.2f  categories: %d  sort: %s %s\n\n",
		view.GlobalAvgRating, view.Total, view.Sort, view.Dir)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tEXTENSIONS\tUSERS\tAVG RATING\tUNDERSERVED")
	for _, r := range view.Rows {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.2f\t%.3f\n",
			r.ID, r.Name, r.ExtensionCount, r.TotalUsers, r.AvgRating, r.UnderservedIndex)
	}
	return w.Flush()
}

func printCategory(out io.Writer, view *opportunity.CategoryView) error {
	s := view.Summary
	fmt.Fprintf(out, "%s (#%d)  extensions: %d  users: %d  avg rating: %.2f  global: %.2f\n\n",
		view.Category.Name, view.Category.ID, s.ExtensionCount, s.TotalUsers, s.AvgRating, s.GlobalAvgRating)
	if view.Total == 0 {
		fmt.Fprintln(out, "no extensions match the filter")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEXTENSION\tUSERS\tRATING\tVOTES\tGAP\tSCORE")
	for _, r := range view.Rows {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\t%d\t%.2f\t%.1f\n",
			r.ExtensionID, r.Name, r.Users, r.Rating, r.RatingVotes, r.RatingGap, r.Score)
	}
	return w.Flush()
}

func printOpportunities(out io.Writer, view *opportunity.OpportunityView) error {
	if view.Total == 0 {
		fmt.Fprintln(out, "no opportunities found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tEXTENSION\tCATEGORY\tUSERS\tRATING\tGAP\tCOMPETITION")
	for _, r := range view.Rows {
		fmt.Fprintf(w, "%.1f\t%s\t%s\t%d\t%.2f\t%.2f\t%d\n",
			r.Score, r.Name, r.CategoryName, r.Users, r.Rating, r.RatingGap, r.CompetitionCount)
	}
	return w.Flush()
}

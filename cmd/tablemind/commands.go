package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tablemind/internal/report"
	"tablemind/internal/timewindow"
)

func exportCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export monthly waiter statistics to Excel (and Google Sheets when configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if month == "" {
				month = timewindow.MonthKey(time.Now())
			}
			if _, err := report.ParseMonth(month); err != nil {
				return err
			}

			st, err := openStores(ctx, app.cfg, &app.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			exporters, err := reportExporters(ctx, app.cfg)
			if err != nil {
				return err
			}
			svc := report.NewService(report.Config{}, st.main, app.logger, exporters...)
			if err := svc.Export(ctx, month); err != nil {
				return fmt.Errorf("failed to export %s: %w", month, err)
			}

			fmt.Printf("\n✅ Report for %s exported\n", month)
			fmt.Printf("Workbook: %s\n", report.NewExcelExporter(app.cfg.ReportDir(), nil).Path(month))
			if app.cfg.Report.Sheets.SpreadsheetID != "" {
				fmt.Printf("Sheet ID: %s\n", app.cfg.Report.Sheets.SpreadsheetID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "Month as YYYY-MM (default: current month)")
	return cmd
}

func checkConfigCmd() *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and report waiter load drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := app.cfg

			fmt.Printf("Config OK (driver %s)\n", cfg.Database.Driver)
			fmt.Printf("  buffer %s, default duration %s, auto-assign %t\n", cfg.TableBuffer(), cfg.DefaultDuration(), cfg.AutoAssign())
			fmt.Printf("  monitor every %s, lookahead %s\n", cfg.MonitorInterval(), cfg.MonitorLookahead())

			st, err := openStores(ctx, cfg, &app.logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.main.Ping(ctx); err != nil {
				return fmt.Errorf("store not reachable: %w", err)
			}

			found, err := drift(ctx, st.main)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Println("Waiter load counts are consistent")
				return nil
			}
			printDrift(found)

			if !repair {
				fmt.Println("Run with --repair to rewrite the counts")
				return nil
			}
			return repairDrift(ctx, st, found)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Rewrite drifted waiter load counts")
	return cmd
}

func printDrift(found map[string]map[string]int) {
	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, rid := range ids {
		fmt.Printf("Restaurant %s:\n", rid)
		waiters := make([]string, 0, len(found[rid]))
		for id := range found[rid] {
			waiters = append(waiters, id)
		}
		sort.Strings(waiters)
		for _, wid := range waiters {
			fmt.Printf("  %-20s %+d\n", wid, found[rid][wid])
		}
	}
}

func repairDrift(ctx context.Context, st *stores, found map[string]map[string]int) error {
	eng := newEngine(app.cfg, st.main, nil, app.logger)
	for rid := range found {
		if _, err := eng.reservations.Reconcile(ctx, rid); err != nil {
			return fmt.Errorf("repair %s: %w", rid, err)
		}
	}
	fmt.Printf("Repaired %d restaurant(s)\n", len(found))
	return nil
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the sqlite database now and prune old backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, app.cfg, &app.logger)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.sqlite == nil {
				return fmt.Errorf("driver %s has no local database to back up", app.cfg.Database.Driver)
			}

			svc, err := newBackupService(ctx, app.cfg, st, &app.logger)
			if err != nil {
				return err
			}
			path, err := svc.PerformBackup(ctx)
			if err != nil {
				return err
			}
			deleted, err := svc.CleanupOldBackups()
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to %s (%d old backup(s) removed)\n", path, deleted)
			return nil
		},
	}
}

func handoverCmd() *cobra.Command {
	var restaurantID, from, to string
	cmd := &cobra.Command{
		Use:   "handover",
		Short: "Move a waiter's active reservations to another waiter and swap their shifts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, app.cfg, &app.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			eng := newEngine(app.cfg, st.main, nil, app.logger)
			result, err := eng.shifts.Handover(ctx, restaurantID, from, to)
			if err != nil {
				return err
			}
			fmt.Printf("Moved %d reservation(s) from %s to %s\n", result.Moved, from, to)
			for _, id := range result.ReservationIDs {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&restaurantID, "restaurant", "r", "", "Restaurant ID")
	cmd.Flags().StringVar(&from, "from", "", "Waiter going off shift")
	cmd.Flags().StringVar(&to, "to", "", "Waiter taking over")
	_ = cmd.MarkFlagRequired("restaurant")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

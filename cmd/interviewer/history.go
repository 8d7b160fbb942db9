package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/session"
	"github.com/pavelanni/interviewer/internal/stats"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show practice history and progress",
		RunE:  runHistory,
	}
	addClientFlags(cmd)
	cmd.Flags().Bool("remote", false, "Summarize the history stored on the server instead of the local copy")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every user's session history as JSON (admin only)",
		RunE:  runExport,
	}
	addClientFlags(cmd)
	f := cmd.Flags()
	f.String("email", "", "Admin email; the stored sign-in is used when empty")
	f.String("password", "", "Admin password (or set INTERVIEWER_PASSWORD)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(v.GetString("lang")))

	snap, err := session.NewFileStore(v.GetString("state-file")).Load()
	if err != nil {
		return err
	}

	history := snap.History
	if v.GetBool("remote") {
		api := newClient(v)
		api.SetToken(snap.Token)
		history, err = api.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("load server history: %w", err)
		}
	}
	sum := stats.Summarize(history)

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, appI18n.T(ctx, "HistoryTitle"))
	if sum.TotalSessions == 0 {
		fmt.Fprintln(w, appI18n.T(ctx, "HistoryEmpty"))
		return nil
	}
	fmt.Fprintln(w, appI18n.Tp(ctx, "SessionsCompleted", sum.TotalSessions))
	fmt.Fprintln(w, appI18n.Td(ctx, "AverageCompletion", map[string]any{"Rate": fmt.Sprintf("%.0f", sum.AverageCompletion)}))
	if sum.EvaluatedAnswers > 0 {
		fmt.Fprintln(w, appI18n.Td(ctx, "AverageScore", map[string]any{"Score": fmt.Sprintf("%.1f", sum.AverageScore)}))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, appI18n.T(ctx, "RoleBreakdown"))
	for _, rc := range sum.Roles {
		fmt.Fprintf(w, "  %-32s %d\n", rc.Role, rc.Sessions)
	}

	fmt.Fprintln(w)
	for i, pt := range sum.Trend {
		h := history[i]
		when := h.Date
		if t, err := time.Parse(time.RFC3339, h.Date); err == nil {
			when = humanize.Time(t)
		}
		fmt.Fprintln(w, appI18n.Td(ctx, "SessionLine", map[string]any{
			"Label":    pt.Label,
			"Role":     h.JobRole,
			"Answered": h.AnsweredQuestions,
			"Total":    h.TotalQuestions,
			"When":     when,
		}))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	api := newClient(v)
	if email := v.GetString("email"); email != "" {
		if _, _, err := api.Login(ctx, email, v.GetString("password")); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	} else {
		snap, err := session.NewFileStore(v.GetString("state-file")).Load()
		if err != nil {
			return err
		}
		if snap.Token == "" {
			return fmt.Errorf("not signed in: pass --email and --password or sign in with the practice command")
		}
		api.SetToken(snap.Token)
	}

	export, err := api.ExportHistory(ctx)
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

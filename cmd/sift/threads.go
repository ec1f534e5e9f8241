package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mailsift/sift/internal/cli"
	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/model"
	"github.com/mailsift/sift/internal/service"
)

func threadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "threads",
		Aliases: []string{"thread"},
		Short:   "Manage and process email threads",
	}

	cmd.AddCommand(threadsImportCmd())
	cmd.AddCommand(threadsListCmd())
	cmd.AddCommand(threadsProcessCmd())
	cmd.AddCommand(threadsAutoCmd())
	cmd.AddCommand(threadsMarkCmd())
	cmd.AddCommand(threadsUnmarkCmd())
	cmd.AddCommand(threadsStatsCmd())

	return cmd
}

// importChunkSize bounds how many threads go into each upsert so large
// imports report progress as they go.
const importChunkSize = 50

// saveThreadsChunked upserts threads in fixed-size chunks, calling
// onChunk with each chunk's size after it is saved.
func saveThreadsChunked(ctx context.Context, store service.Storage, threads []model.Thread, onChunk func(int)) error {
	for start := 0; start < len(threads); start += importChunkSize {
		end := start + importChunkSize
		if end > len(threads) {
			end = len(threads)
		}
		if err := store.SaveThreads(ctx, threads[start:end]); err != nil {
			return err
		}
		if onChunk != nil {
			onChunk(end - start)
		}
	}
	return nil
}

// importFile is the JSON shape accepted by 'threads import'.
type importFile struct {
	Threads []model.Thread `json:"threads"`
	Drafts  []model.Draft  `json:"drafts,omitempty"`
	Tasks   []model.Task   `json:"tasks,omitempty"`
}

func threadsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import thread snapshots from a JSON file",
		Long: `Import email thread snapshots, with any drafts and extracted tasks,
from a JSON export. Re-importing a thread refreshes its mailbox
attributes but keeps its processing state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			userID, err := getUserID()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var file importFile
			if err := json.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			// Imported records are always scoped to the invoking user.
			for i := range file.Threads {
				file.Threads[i].UserID = userID
			}
			for i := range file.Drafts {
				file.Drafts[i].UserID = userID
			}
			for i := range file.Tasks {
				file.Tasks[i].UserID = userID
			}

			if dryRun {
				fmt.Printf("Would import %d threads, %d drafts, %d tasks\n",
					len(file.Threads), len(file.Drafts), len(file.Tasks))
				return nil
			}

			if len(file.Threads) == 0 {
				fmt.Println(cli.SubtleStyle.Render("Nothing to import"))
				return nil
			}

			store, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			bar := progressbar.NewOptions(len(file.Threads),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Importing threads..."),
			)

			err = saveThreadsChunked(ctx, store, file.Threads, func(n int) {
				_ = bar.Add(n)
			})
			if err != nil {
				return fmt.Errorf("failed to import threads: %w", err)
			}

			if len(file.Drafts) > 0 {
				if err := store.SaveDrafts(ctx, file.Drafts); err != nil {
					return fmt.Errorf("failed to import drafts: %w", err)
				}
			}
			if len(file.Tasks) > 0 {
				if err := store.SaveTasks(ctx, file.Tasks); err != nil {
					return fmt.Errorf("failed to import tasks: %w", err)
				}
			}
			_ = bar.Finish()
			fmt.Println()

			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Imported %d threads, %d drafts, %d tasks",
				len(file.Threads), len(file.Drafts), len(file.Tasks))))
			return nil
		},
	}

	cmd.Flags().BoolP("dry-run", "d", false, "preview import without saving")
	return cmd
}

func threadsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List threads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			includeHidden, _ := cmd.Flags().GetBool("all")

			userID, err := getUserID()
			if err != nil {
				return err
			}

			store, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			threads, err := store.ListThreads(ctx, userID, includeHidden)
			if err != nil {
				return fmt.Errorf("failed to list threads: %w", err)
			}

			if len(threads) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No threads found"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tSUBJECT\tCATEGORY\tPROCESSED\tREASON")
			_, _ = fmt.Fprintln(w, "──\t───────\t────────\t─────────\t──────")

			for _, thread := range threads {
				processed := "no"
				if thread.IsProcessed {
					processed = "yes"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					truncateString(thread.ID, 12),
					truncateString(thread.Subject, 40),
					thread.Category,
					processed,
					thread.ProcessingReason)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolP("all", "a", false, "include hidden threads")
	return cmd
}

func threadsProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <thread-id>",
		Short: "Run the triage decision for one thread",
		Long: `Evaluate a thread against the user's rules and the category
completion checks, persisting the outcome if the thread is handled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := eng.CheckThreadProcessingStatus(cmd.Context(), userID, args[0])
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("thread %s not found", args[0])
				}
				return fmt.Errorf("failed to process thread: %w", err)
			}

			if !result.IsProcessed {
				fmt.Println(cli.SubtleStyle.Render("Thread still needs attention"))
				return nil
			}

			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Thread processed: %s", result.Reason)))
			for _, action := range result.Actions {
				fmt.Printf("  - %s\n", action)
			}
			return nil
		},
	}
}

func threadsAutoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto",
		Short: "Auto-process all unprocessed threads",
		Long: `Run the triage decision over every unprocessed thread. Threads that
fail are skipped; the command reports how many were actually processed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("Processing threads..."),
			)

			count, err := eng.AutoProcessThreadsWithProgress(ctx, userID, func() {
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			fmt.Println()
			if err != nil {
				return fmt.Errorf("auto-process failed after %d threads: %w", count, err)
			}

			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Auto-processed %d threads", count)))
			return nil
		},
	}
}

func threadsMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark <thread-id>",
		Short: "Mark a thread as processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			hidden, _ := cmd.Flags().GetBool("hide")

			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.MarkThreadProcessed(cmd.Context(), userID, args[0], reason, hidden); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("thread %s not found", args[0])
				}
				return fmt.Errorf("failed to mark thread: %w", err)
			}

			fmt.Println(cli.RenderSuccess("Thread marked as processed"))
			return nil
		},
	}

	cmd.Flags().String("reason", "", "processing reason (defaults to manual)")
	cmd.Flags().Bool("hide", true, "hide the thread from the active view")
	return cmd
}

func threadsUnmarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmark <thread-id>",
		Short: "Return a thread to the active queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.UnmarkThreadProcessed(cmd.Context(), userID, args[0]); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("thread %s not found", args[0])
				}
				return fmt.Errorf("failed to unmark thread: %w", err)
			}

			fmt.Println(cli.RenderSuccess("Thread returned to the active queue"))
			return nil
		},
	}
}

func threadsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show triage statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := eng.GetProcessingStats(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			summary := fmt.Sprintf("Threads: %d total, %d active, %d processed",
				stats.Total, stats.Active, stats.Processed)
			fmt.Println(cli.BoxStyle.Render(summary))

			if len(stats.ProcessingReasons) > 0 {
				fmt.Println(cli.BoldStyle.Render("Processing reasons:"))
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				for reason, count := range stats.ProcessingReasons {
					_, _ = fmt.Fprintf(w, "  %s\t%d\n", reason, count)
				}
				return w.Flush()
			}
			return nil
		},
	}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailsift/sift/internal/cli"
	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/match"
	"github.com/mailsift/sift/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage triage rules",
		Long: `Manage the user-authored rules that decide which threads are
auto-processed, where they are filed, and how responses should be shaped.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesDeleteCmd())
	cmd.AddCommand(rulesToggleCmd())
	cmd.AddCommand(rulesFeedbackCmd())
	cmd.AddCommand(rulesConfidenceCmd())
	cmd.AddCommand(rulesTestCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Long:  `List all triage rules with their confidence and usage counters.`,
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

			rules, err := eng.GetUserRules(ctx, userID)
			if err != nil {
				return fmt.Errorf("failed to get rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules found"))
				return nil
			}

			fmt.Println(cli.RenderTitle("Triage Rules"))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCONFIDENCE\tAPPLIED\tCORRECT\tINCORRECT")
			_, _ = fmt.Fprintln(w, "──\t────\t──────\t──────────\t───────\t───────\t─────────")

			for _, rule := range rules {
				active := "yes"
				if !rule.IsActive {
					active = "no"
				}
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.0f%%\t%d\t%d\t%d\n",
					rule.ID,
					truncateString(rule.Name, 30),
					active,
					rule.ConfidenceScore*100,
					rule.TimesApplied,
					rule.TimesCorrect,
					rule.TimesIncorrect)
			}

			return w.Flush()
		},
	}
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show rule details",
		Long:  `Display a rule's criteria, actions, counters and application log summary.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			userID, err := getUserID()
			if err != nil {
				return err
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := db.GetRule(ctx, userID, id)
			if err != nil {
				return err
			}

			// The application-log count is the source of truth for
			// times_applied; show both so drift is visible.
			logCount, err := db.CountRuleApplications(ctx, userID, id)
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderTitle(fmt.Sprintf("Rule %d: %s", rule.ID, rule.Name)))
			if rule.Description != "" {
				fmt.Printf("  Instruction:  %s\n", rule.Description)
			}
			fmt.Printf("  Active:       %t\n", rule.IsActive)
			fmt.Printf("  Confidence:   %.0f%%\n", rule.ConfidenceScore*100)
			fmt.Printf("  Applied:      %d (log entries: %d)\n", rule.TimesApplied, logCount)
			fmt.Printf("  Feedback:     %d correct, %d incorrect\n", rule.TimesCorrect, rule.TimesIncorrect)
			if rule.LastAppliedAt != nil {
				fmt.Printf("  Last applied: %s\n", rule.LastAppliedAt.Format("2006-01-02 15:04:05"))
			}

			fmt.Println(cli.BoldStyle.Render("  Criteria:"))
			printCriteria(rule.Criteria)

			fmt.Println(cli.BoldStyle.Render("  Actions:"))
			for _, action := range rule.Actions.Describe() {
				fmt.Printf("    - %s\n", action)
			}

			return nil
		},
	}
}

func printCriteria(c model.MatchingCriteria) {
	printList := func(label string, values []string) {
		if len(values) > 0 {
			fmt.Printf("    %s: %s\n", label, strings.Join(values, ", "))
		}
	}
	printList("sender domains", c.SenderDomains)
	printList("sender emails", c.SenderEmails)
	printList("sender contains", c.SenderContains)
	printList("subject contains", c.SubjectContains)
	printList("subject exact", c.SubjectExact)
	if c.SubjectPattern != "" {
		fmt.Printf("    subject pattern: /%s/\n", c.SubjectPattern)
	}
	printList("body contains", c.BodyContains)
	if c.BodyPattern != "" {
		fmt.Printf("    body pattern: /%s/\n", c.BodyPattern)
	}
	if len(c.Categories) > 0 {
		cats := make([]string, len(c.Categories))
		for i, cat := range c.Categories {
			cats[i] = string(cat)
		}
		fmt.Printf("    categories: %s\n", strings.Join(cats, ", "))
	}
	if len(c.Priorities) > 0 {
		pris := make([]string, len(c.Priorities))
		for i, pri := range c.Priorities {
			pris[i] = string(pri)
		}
		fmt.Printf("    priorities: %s\n", strings.Join(pris, ", "))
	}
	printList("participants include", c.ParticipantsInclude)
	printList("participants exclude", c.ParticipantsExclude)
	if c.IsEmpty() {
		fmt.Println(cli.RenderWarning("    (empty - matches every thread)"))
	}
}

func rulesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <instruction>",
		Short: "Create a rule from a free-text instruction",
		Long: `Create a triage rule by describing what it should do, optionally
anchored to an example thread for better criteria extraction.

Examples:
  sift rules create "These admin notifications require no action. Move them to the Admin folder."
  sift rules create "Newsletters can be marked as done." --example thread-123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			userID, err := getUserID()
			if err != nil {
				return err
			}

			exampleID, _ := cmd.Flags().GetString("example")

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := eng.CreateRuleFromInstruction(ctx, userID, args[0], exampleID)
			if err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Created rule %d: %s (confidence %.0f%%)",
				rule.ID, rule.Name, rule.ConfidenceScore*100)))
			if rule.Criteria.IsEmpty() {
				fmt.Println(cli.RenderWarning("Warning: rule has no criteria and will match every thread"))
			}
			return nil
		},
	}

	cmd.Flags().StringP("example", "e", "", "example thread ID to anchor criteria extraction")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Long:  `Delete a rule and its application log. Deleting an already-deleted rule succeeds.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.DeleteRule(cmd.Context(), userID, id); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Deleted rule %d", id)))
			return nil
		},
	}
}

func rulesToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Activate or deactivate a rule",
		Long:  `Toggle a rule's active flag. Inactive rules are retained but never matched.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			active, _ := cmd.Flags().GetBool("active")

			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.ToggleRule(cmd.Context(), userID, id, active); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("rule %d not found", id)
				}
				return fmt.Errorf("failed to toggle rule: %w", err)
			}

			state := "active"
			if !active {
				state = "inactive"
			}
			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Rule %d is now %s", id, state)))
			return nil
		},
	}

	cmd.Flags().Bool("active", true, "desired active state")
	return cmd
}

func rulesFeedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <application-id> <correct|incorrect|partially_correct>",
		Short: "Record feedback on a rule application",
		Long: `Record whether a logged rule application was correct. Feedback
updates the rule's correctness counters; it never changes the confidence
score, which is adjusted explicitly with 'rules set-confidence'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := getUserID()
			if err != nil {
				return err
			}

			notes, _ := cmd.Flags().GetString("notes")

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			feedback := model.Feedback(args[1])
			if err := eng.ProvideFeedback(cmd.Context(), userID, args[0], feedback, notes); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return fmt.Errorf("rule application %s not found", args[0])
				}
				return fmt.Errorf("failed to record feedback: %w", err)
			}

			fmt.Println(cli.RenderSuccess("Feedback recorded"))
			return nil
		},
	}

	cmd.Flags().String("notes", "", "free-text notes on the verdict")
	return cmd
}

func rulesConfidenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-confidence <id> <score>",
		Short: "Set a rule's confidence score",
		Long:  `Explicitly set a rule's confidence score (0 to 1), which ranks it against competing matches.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}
			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid confidence score: %s", args[1])
			}

			userID, err := getUserID()
			if err != nil {
				return err
			}

			eng, cleanup, err := getEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := eng.SetRuleConfidence(cmd.Context(), userID, id, score); err != nil {
				return fmt.Errorf("failed to set confidence: %w", err)
			}

			fmt.Println(cli.RenderSuccess(fmt.Sprintf("Rule %d confidence set to %.0f%%", id, score*100)))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Dry-run a rule against a stored thread",
		Long:  `Evaluate a rule's criteria against a thread without recording anything.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			threadID, _ := cmd.Flags().GetString("thread")
			if threadID == "" {
				return fmt.Errorf("--thread is required")
			}

			userID, err := getUserID()
			if err != nil {
				return err
			}

			db, cleanup, err := getDatabase()
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := db.GetRule(ctx, userID, id)
			if err != nil {
				return err
			}
			thread, err := db.GetThread(ctx, userID, threadID)
			if err != nil {
				return err
			}

			matcher := match.New([]model.Rule{*rule})
			if matcher.Matches(*rule, *thread) {
				fmt.Println(cli.RenderSuccess(fmt.Sprintf("Rule %q matches thread %s", rule.Name, thread.ID)))
			} else {
				fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Rule %q does not match thread %s", rule.Name, thread.ID)))
			}
			return nil
		},
	}

	cmd.Flags().StringP("thread", "t", "", "thread ID to test against")
	return cmd
}

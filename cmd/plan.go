package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/integrity"
	"github.com/josephgoksu/deepagent/internal/planning"
	"github.com/josephgoksu/deepagent/internal/ui"
	"github.com/josephgoksu/deepagent/internal/util"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planCreateCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planStepCmd)
	planCmd.AddCommand(planAddCmd)
	planCmd.AddCommand(planCompleteCmd)
	planCmd.AddCommand(planCancelCmd)
	planCmd.AddCommand(planDeleteCmd)
	planCmd.AddCommand(planDoctorCmd)

	planCreateCmd.Flags().String("thread", "", "thread id the plan belongs to (required)")
	planCreateCmd.Flags().String("title", "", "plan title (required)")
	_ = planCreateCmd.MarkFlagRequired("thread")
	_ = planCreateCmd.MarkFlagRequired("title")

	planShowCmd.Flags().String("thread", "", "show the active plan of this thread")

	planListCmd.Flags().String("thread", "", "thread id (required)")
	planListCmd.Flags().String("status", "", "filter by status: active, completed or cancelled")
	_ = planListCmd.MarkFlagRequired("thread")

	planStepCmd.Flags().Bool("undo", false, "mark the step incomplete instead")

	planDeleteCmd.Flags().Bool("force", false, "skip confirmation")
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage thread plans",
	Long: `Create, inspect and progress the plans attached to conversation threads.

Examples:
  deepagent plan create --thread t1 --title "Ship feature" "write code" "write tests"
  deepagent plan show --thread t1
  deepagent plan step plan-1a2b3c4d 1
  deepagent plan list --thread t1 --status completed`,
}

var planCreateCmd = &cobra.Command{
	Use:   "create --thread ID --title TITLE [step...]",
	Short: "Create the active plan for a thread",
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		title, _ := cmd.Flags().GetString("title")
		plan, err := app.plans.CreatePlan(cmd.Context(), planning.CreatePlanRequest{
			ThreadID: threadID,
			Title:    title,
			Steps:    args,
		})
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	}),
}

var planShowCmd = &cobra.Command{
	Use:   "show [plan-id|prefix]",
	Short: "Show a plan, or a thread's active plan with --thread",
	Args:  cobra.MaximumNArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		switch {
		case len(args) == 1:
			planID, err := app.resolvePlanID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			plan, err := app.plans.GetPlan(cmd.Context(), planID)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), plan)
		case threadID != "":
			plan, err := app.plans.GetActivePlan(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			if plan == nil {
				if isStructured() {
					return render(cmd.OutOrStdout(), map[string]any{"message": "No active plan found", "plan": nil}, nil)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "No active plan for thread %s.\n", threadID)
				return nil
			}
			return printPlan(cmd.OutOrStdout(), plan)
		default:
			return apperr.NewValidation("plan_id", "pass a plan id or --thread")
		}
	}),
}

var planListCmd = &cobra.Command{
	Use:   "list --thread ID",
	Short: "List a thread's plans, newest first",
	RunE: runWithApp(func(app *application, cmd *cobra.Command, _ []string) error {
		threadID, _ := cmd.Flags().GetString("thread")
		status, _ := cmd.Flags().GetString("status")
		plans, err := app.plans.ListPlans(cmd.Context(), threadID, status)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), plans, func(w io.Writer) error {
			if len(plans) == 0 {
				_, err := fmt.Fprintln(w, "No plans found.")
				return err
			}
			if styled() {
				_, err := fmt.Fprint(w, ui.PlanTable(plans).Render())
				return err
			}
			for _, p := range plans {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\n", p.PlanID, ui.StatusLabel(p.Status), p.Title, p.CompletionPercentage)
			}
			return nil
		})
	}),
}

var planStepCmd = &cobra.Command{
	Use:   "step <plan-id> <step-number>",
	Short: "Mark a step completed (or incomplete with --undo)",
	Args:  cobra.ExactArgs(2),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return apperr.NewValidation("step_number", fmt.Sprintf("step number must be an integer, got %q", args[1]))
		}
		planID, err := app.resolvePlanID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		undo, _ := cmd.Flags().GetBool("undo")
		plan, err := app.plans.UpdateStep(cmd.Context(), planning.UpdateStepRequest{
			PlanID:     planID,
			StepNumber: number,
			Completed:  !undo,
		})
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	}),
}

var planAddCmd = &cobra.Command{
	Use:   "add <plan-id> <description>",
	Short: "Append a step to an active plan",
	Args:  cobra.ExactArgs(2),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		planID, err := app.resolvePlanID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		plan, err := app.plans.AddStep(cmd.Context(), planID, args[1])
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	}),
}

var planCompleteCmd = &cobra.Command{
	Use:   "complete <plan-id>",
	Short: "Complete a plan whose steps are all done",
	Args:  cobra.ExactArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		planID, err := app.resolvePlanID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		plan, err := app.plans.CompletePlan(cmd.Context(), planID)
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	}),
}

var planCancelCmd = &cobra.Command{
	Use:   "cancel <plan-id>",
	Short: "Cancel an active plan",
	Args:  cobra.ExactArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		planID, err := app.resolvePlanID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		plan, err := app.plans.CancelPlan(cmd.Context(), planID)
		if err != nil {
			return err
		}
		return printPlan(cmd.OutOrStdout(), plan)
	}),
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a plan and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: runWithApp(func(app *application, cmd *cobra.Command, args []string) error {
		planID, err := app.resolvePlanID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirmOrAbort(cmd, fmt.Sprintf("Delete plan %s? [y/N] ", planID)) {
			return nil
		}
		if err := app.plans.DeletePlan(cmd.Context(), planID); err != nil {
			return err
		}
		if !isStructured() {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted plan %s\n", planID)
		}
		return nil
	}),
}

var errIntegrity = errors.New("integrity check failed")

var planDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Find threads holding more than one active plan",
	RunE: runWithApp(func(app *application, cmd *cobra.Command, _ []string) error {
		sweeper := integrity.NewSweeper(app.store, integrity.Options{Tracker: app.telemetry, Logger: app.log})
		violations, err := sweeper.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if err := render(cmd.OutOrStdout(), violations, func(w io.Writer) error {
			if len(violations) == 0 {
				_, err := fmt.Fprintln(w, "OK: every thread has at most one active plan.")
				return err
			}
			for _, v := range violations {
				fmt.Fprintf(w, "thread %s has %d active plans\n", v.ThreadID, v.ActivePlans)
			}
			return nil
		}); err != nil {
			return err
		}
		if len(violations) > 0 {
			return fmt.Errorf("%w: %d thread(s) with multiple active plans", errIntegrity, len(violations))
		}
		return nil
	}),
}

// resolvePlanID accepts a full plan id or a unique prefix of one.
func (a *application) resolvePlanID(ctx context.Context, arg string) (string, error) {
	return util.ResolvePlanID(ctx, a.store, arg)
}

func printPlan(w io.Writer, plan *planning.PlanResponse) error {
	return render(w, plan, func(w io.Writer) error {
		if styled() {
			_, err := fmt.Fprintln(w, ui.RenderPlan(plan))
			return err
		}
		_, err := fmt.Fprint(w, ui.RenderPlanText(plan))
		return err
	})
}

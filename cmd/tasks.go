package main

import (
	"context"
	"strings"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/desertthunder/aehx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TasksHealth prints the backend health report.
func (r *Runner) TasksHealth(ctx context.Context, cmd *cli.Command) error {
	report, err := r.api().Health(ctx)
	if err != nil {
		return err
	}
	return r.writeJSON(report, !cmd.Bool("compact"))
}

// TasksList prints the task table, newest first.
func (r *Runner) TasksList(ctx context.Context, cmd *cli.Command) error {
	list, err := r.api().Tasks(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}
	if len(list) == 0 {
		r.writePlain("No tasks.\n")
		return nil
	}
	for _, t := range list {
		r.writeTask(t)
	}
	return nil
}

// TasksRun starts a backend task.
func (r *Runner) TasksRun(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("task")
	task, err := r.api().RunTask(ctx, name, cmd.String("args"))
	if err != nil {
		return err
	}
	r.writePlain("✓ Started %s (%s)\n", task.Task, task.TaskID)
	return nil
}

// TasksStop asks the backend to stop a task.
func (r *Runner) TasksStop(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if err := r.api().StopTask(ctx, id); err != nil {
		return err
	}
	r.writePlain("✓ Stop requested for %s\n", id)
	return nil
}

// TasksSchedule prints the cron table.
func (r *Runner) TasksSchedule(ctx context.Context, cmd *cli.Command) error {
	schedule, err := r.api().Schedule(ctx)
	if err != nil {
		return err
	}
	return r.writeJSON(schedule, !cmd.Bool("compact"))
}

// TasksWatch follows the task stream and reports every task that fails, until interrupted.
func (r *Runner) TasksWatch(ctx context.Context, cmd *cli.Command) error {
	engine := tasks.NewEngine(r.api(), nil, r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("✗ %s\n", update.Message)
		}
	}()

	r.writePlain("Watching tasks on %s (ctrl+c to stop)\n", r.client.BaseURL())
	err := engine.WatchTasks(ctx, r.client, tasks.NewWatcher(), progressCh, func(t models.Task) {
		r.logger.Error("task failed", "task", t.Task, "id", t.TaskID, "status", t.Status, "hint", t.Hint)
	})
	close(progressCh)
	<-done
	return err
}

func (r *Runner) writeTask(t models.Task) {
	r.writePlain("%-10s %-24s %-10s %s\n", t.Status, t.Task, shared.Truncate(t.TaskID, 10), t.UpdatedAt)
	detail := strings.TrimSpace(t.Error)
	if detail == "" {
		detail = strings.TrimSpace(t.TaskSummary)
	}
	if detail != "" {
		r.writePlain("           %s\n", detail)
	}
	if t.Hint != "" {
		r.writePlain("           hint: %s\n", t.Hint)
	}
}

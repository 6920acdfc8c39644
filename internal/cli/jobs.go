package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

// StoreFn лениво открывает Store после парсинга PersistentFlags.
type StoreFn func(ctx context.Context) (*Store, error)

// NewJobsCmd создаёт группу команд для инспекции очереди jobs.
func NewJobsCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the background job queue",
	}

	cmd.AddCommand(
		newJobsListCmd(storeFn, outputFn),
		newJobsShowCmd(storeFn, outputFn),
		newJobsRequeueCmd(storeFn, outputFn),
	)

	return cmd
}

func newJobsListCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	var kind string
	var status string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			filter := repo.JobFilter{Limit: limit, Offset: offset}
			if kind != "" {
				k, err := domain.ParseJobKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			if status != "" {
				s, err := domain.ParseJobStatus(status)
				if err != nil {
					return err
				}
				filter.Status = s
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.Jobs.List(ctx, filter)
			if err != nil {
				return err
			}

			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = jobRow(j)
			}

			out.Print(jobHeaders, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (expand-series, notify, settle-payments)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (QUEUED, RUNNING, DONE, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newJobsShowCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details including payload and last error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Jobs.GetByID(ctx, id)
			if err != nil {
				return err
			}

			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}
}

func newJobsRequeueCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "requeue ID",
		Short: "Put a FAILED job back to QUEUED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := store.Jobs.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if job.Status != domain.JobStatusFailed {
				return fmt.Errorf("job %s is %s, only FAILED jobs can be requeued", id, job.Status)
			}

			runAt := time.Now().UTC().Add(delay)
			if err := store.Jobs.Requeue(ctx, id, runAt, job.LastError); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job requeued: %s (run_at %s)", id, runAt.Format(time.RFC3339)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay before the job becomes claimable")

	return cmd
}

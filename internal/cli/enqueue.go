package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/domain"
)

// NewEnqueueCmd создаёт группу команд ручной постановки jobs.
//
// Основной продюсер jobs — приложение; ручная постановка нужна для
// восстановления после инцидентов (например, повторная рассылка по
// событию) и для проверки воркеров в стейджинге.
func NewEnqueueCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a background job manually",
	}

	cmd.AddCommand(
		newEnqueueExpandCmd(storeFn, outputFn),
		newEnqueueNotifyCmd(storeFn, outputFn),
		newEnqueueSettleCmd(storeFn, outputFn),
	)

	return cmd
}

func newEnqueueExpandCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	var repeats string
	var until string

	cmd := &cobra.Command{
		Use:   "expand BASE_EVENT_ID",
		Short: "Enqueue series expansion for a base event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			baseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id %q: %w", args[0], err)
			}

			rep, err := domain.ParseRepeat(strings.ToUpper(repeats))
			if err != nil {
				return err
			}
			if rep == domain.RepeatNone {
				return fmt.Errorf("--repeats is required (daily, weekly or monthly)")
			}

			untilDate, err := time.Parse("2006-01-02", until)
			if err != nil {
				return fmt.Errorf("invalid --until %q, expected YYYY-MM-DD: %w", until, err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			base, err := store.Events.GetByID(ctx, baseID)
			if err != nil {
				return err
			}

			job, err := domain.NewJob(domain.KindExpandSeries, domain.ExpandSeriesPayload{
				SeriesID:    base.SeriesID,
				BaseEventID: base.ID,
				Repeats:     rep,
				Until:       untilDate,
			}, time.Now().UTC())
			if err != nil {
				return err
			}

			if err := store.Jobs.Create(ctx, job); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job enqueued: %s", job.ID))
			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&repeats, "repeats", "", "Repeat cadence: daily, weekly or monthly")
	cmd.Flags().StringVar(&until, "until", "", "Series end date (exclusive), YYYY-MM-DD")

	return cmd
}

func newEnqueueNotifyCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "notify EVENT_ID",
		Short: "Enqueue push notification fan-out for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id %q: %w", args[0], err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := domain.NewJob(domain.KindNotifyEvent,
				domain.NotifyEventPayload{EventID: eventID}, time.Now().UTC())
			if err != nil {
				return err
			}

			if err := store.Jobs.Create(ctx, job); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job enqueued: %s", job.ID))
			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}
}

func newEnqueueSettleCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Enqueue settlement of all pending payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			job, err := domain.NewJob(domain.KindSettlePayments, nil,
				time.Now().UTC().Add(delay))
			if err != nil {
				return err
			}

			if err := store.Jobs.Create(ctx, job); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job enqueued: %s", job.ID))
			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}

	cmd.Flags().DurationVar(&delay, "delay", 0, "Delay before the job becomes claimable")

	return cmd
}

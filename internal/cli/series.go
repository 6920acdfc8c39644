package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewSeriesCmd создаёт команду инспекции серии событий: показывает
// все occurrences с общим SERIES_ID в порядке их индекса. Удобно
// для проверки результата expand-series job.
func NewSeriesCmd(storeFn StoreFn, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "series SERIES_ID",
		Short: "List all occurrences of an event series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			seriesID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid series id %q: %w", args[0], err)
			}

			store, err := storeFn(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.Events.ListSeries(ctx, seriesID)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("series %s has no events", seriesID)
			}

			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = eventRow(e)
			}

			out.Print(eventHeaders, rows, events)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/visionbatch/internal/pipeline"
	"github.com/andresuchdata/visionbatch/internal/service"
)

func listRuns(c *cli.Context) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := service.NewRunService(pipeline.NewRepository(db)).ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRUN\tBUCKET\tPREFIX\tSTATUS\tLISTED\tDONE\tFAILED\tSKIPPED\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.UID, r.Bucket, r.SourcePrefix, r.Status,
			r.TotalObjects, r.ProcessedObjects, r.FailedObjects, r.SkippedObjects,
			r.StartedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

package subtitles

import (
	"context"
	"runtime"

	"github.com/mgpai22/pressurecooker/internal/logging"
	"golang.org/x/sync/errgroup"
)

// one file of a batch conversion
type Job struct {
	Input    string
	Output   string
	Language string
	Options  Options
}

type JobResult struct {
	Job    Job
	Result *Result
	Err    error
}

// ConvertBatch runs jobs in parallel, each with its own readers and
// converter session. A failing job never stops the others; results come
// back in job order. Jobs not yet started when ctx is cancelled report
// ctx.Err().
func ConvertBatch(ctx context.Context, jobs []Job, concurrency int, logger *logging.Logger) []JobResult {
	logger = logging.OrNop(logger)
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	results := make([]JobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			results[i].Job = job
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			logger.Debugw("Converting subtitles",
				"input", job.Input,
				"output", job.Output,
				"language", job.Language,
			)
			res, err := ConvertFile(job.Input, job.Output, job.Language, job.Options)
			if err != nil {
				logger.Warnw("Subtitle conversion failed",
					"input", job.Input,
					"error", err,
				)
				results[i].Err = err
				return nil
			}

			logger.Infow("Converted subtitles",
				"input", job.Input,
				"output", job.Output,
				"format", res.Format,
				"cues", res.Cues,
			)
			results[i].Result = res
			return nil
		})
	}

	_ = g.Wait()
	return results
}

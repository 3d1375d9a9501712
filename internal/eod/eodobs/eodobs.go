package eodobs

import (
	"context"
	"time"

	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(ctx context.Context, identity, date string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeDay")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting EOD summary generation",
		"identity", identity,
		"date", date,
	)

	csvPath, err := oes.summarizer.SummarizeDay(ctx, identity, date)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "EOD summary generation failed", err,
			"identity", identity,
			"date", date,
		)
		return "", err
	}

	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades found for EOD summary",
			"identity", identity,
			"date", date,
		)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "EOD summary generated successfully",
		"identity", identity,
		"date", date,
		"csv_path", csvPath,
	)

	return csvPath, nil
}

func (oes *observableEodSummarizer) ShouldRunNow(now time.Time) bool {
	ctx, span := trace.StartSpan(context.Background(), "eod.ShouldRunNow")
	defer span.End()

	shouldRun := oes.summarizer.ShouldRunNow(now)

	logger.DebugSkip(ctx, 1, "EOD check completed",
		"should_run", shouldRun,
		"now", now.Format(time.RFC3339),
	)

	return shouldRun
}

package interfaces

import (
	"context"
	"time"
)

type EodSummarizer interface {
	SummarizeDay(ctx context.Context, identity, date string) (csvPath string, err error)
	ShouldRunNow(now time.Time) bool
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const boardReferencePrefix = "BRD"

// BoardReferencePrefix is the per-day prefix every board reference of date shares
func BoardReferencePrefix(date time.Time) string {
	return fmt.Sprintf("%s-%s-", boardReferencePrefix, date.Format("20060102"))
}

// NextBoardReference returns BRD-<yyyyMMdd>-<seq> where seq is the number of references
// already issued that day plus attempt. attempt starts at 1 and grows on collisions.
func NextBoardReference(ctx context.Context, date time.Time, attempt int, count func(ctx context.Context, prefix string) (int64, error)) (string, error) {
	prefix := BoardReferencePrefix(date)
	issued, err := count(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to count board references for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s%03d", prefix, issued+int64(attempt)), nil
}

// BoardIDFromReference derives the board id: the reference without its prefix and dashes.
// BRD-20250101-001 gives 20250101001.
func BoardIDFromReference(reference string) string {
	id := strings.TrimPrefix(reference, boardReferencePrefix+"-")
	return strings.ReplaceAll(id, "-", "")
}

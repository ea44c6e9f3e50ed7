package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/DTPriya20/click-gait/pkg/models"
)

type replayRow struct {
	At       time.Time
	Features []float64
}

// readReplay parses timestamp,feature,... rows. A first row whose timestamp
// does not parse is taken as a header.
func readReplay(r io.Reader) ([]replayRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var rows []replayRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want timestamp and at least one feature", line)
		}

		at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}

		features := make([]float64, 0, len(rec)-1)
		for i, field := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: feature %d: %w", line, i+1, err)
			}
			features = append(features, v)
		}
		rows = append(rows, replayRow{At: at, Features: features})
	}
	if len(rows) == 0 {
		return nil, errors.New("replay file has no rows")
	}
	return rows, nil
}

// replay posts rows in order and returns the final session summary.
func replay(ctx context.Context, c trackerClient, rows []replayRow, timeout time.Duration, each func(int, *models.EventOutcome)) (*models.Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	call := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, timeout)
	}

	for i, row := range rows {
		at := row.At
		pctx, cancel := call()
		out, err := c.Predict(pctx, row.Features, &at)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if each != nil {
			each(i, out)
		}
	}

	sctx, cancel := call()
	defer cancel()
	return c.Summary(sctx)
}

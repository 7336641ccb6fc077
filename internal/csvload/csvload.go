// Package csvload reads signal and candle CSV exports. Files coming
// out of spreadsheet tools are often UTF-16 with a BOM; the readers
// detect that and decode transparently.
package csvload

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"signal-sweep-lab/internal/domain"
)

// newCSVReader wraps r with BOM-aware decoding and tolerant CSV settings.
func newCSVReader(r io.Reader) *csv.Reader {
	br := bufio.NewReader(r)

	if b, _ := br.Peek(3); len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		// UTF-8 BOM, discard
		br.Discard(3)
	} else if len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		// UTF-16 BOM, decode to UTF-8; the BOM picks the endianness
		tr := transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder())
		br = bufio.NewReader(tr)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(s, "\uFEFF"), `"`))
}

// ReadCandles parses rows of open_time,open,high,low,close,volume.
// A header row is skipped; the result is sorted by open time ascending.
func ReadCandles(r io.Reader) ([]domain.Candle, error) {
	cr := newCSVReader(r)

	var candles []domain.Candle
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++

		if len(rec) < 6 {
			return nil, fmt.Errorf("row %d: want 6 fields, got %d", row, len(rec))
		}
		if row == 1 && isHeaderField(rec[0]) {
			continue
		}

		openTime, err := strconv.ParseInt(cleanField(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: open_time: %w", row, err)
		}

		c := domain.Candle{OpenTime: openTime}
		fields := []struct {
			name string
			dst  *float64
			raw  string
		}{
			{"open", &c.Open, rec[1]},
			{"high", &c.High, rec[2]},
			{"low", &c.Low, rec[3]},
			{"close", &c.Close, rec[4]},
			{"volume", &c.Volume, rec[5]},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(cleanField(f.raw), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", row, f.name, err)
			}
			*f.dst = v
		}

		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	return candles, nil
}

// ReadSignals parses rows of id,symbol,timestamp,direction.
// A header row is skipped; the result is sorted by timestamp then id.
func ReadSignals(r io.Reader) ([]*domain.Signal, error) {
	cr := newCSVReader(r)

	var signals []*domain.Signal
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row+1, err)
		}
		row++

		if len(rec) < 4 {
			return nil, fmt.Errorf("row %d: want 4 fields, got %d", row, len(rec))
		}
		if row == 1 && isHeaderField(rec[0]) {
			continue
		}

		id, err := strconv.ParseInt(cleanField(rec[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: id: %w", row, err)
		}
		ts, err := strconv.ParseInt(cleanField(rec[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: timestamp: %w", row, err)
		}

		sig := &domain.Signal{
			ID:        id,
			Symbol:    cleanField(rec[1]),
			Timestamp: ts,
			Direction: domain.Direction(strings.ToUpper(cleanField(rec[3]))),
		}
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		signals = append(signals, sig)
	}

	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Timestamp != signals[j].Timestamp {
			return signals[i].Timestamp < signals[j].Timestamp
		}
		return signals[i].ID < signals[j].ID
	})
	return signals, nil
}

// isHeaderField reports whether the first cell of the first row looks
// like a column name instead of a number.
func isHeaderField(s string) bool {
	_, err := strconv.ParseInt(cleanField(s), 10, 64)
	return err != nil
}

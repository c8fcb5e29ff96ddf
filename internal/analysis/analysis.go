// Package analysis breaks productive numbers down into their digit splits
// and exports the result as semicolon CSV or Parquet.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/withObsrvr/productive-numbers/internal/productive"
)

// Formats accepted by WriteFile.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Header is the CSV column row.
var Header = []string{"Number", "SplitPos", "A", "B", "A×B+1", "Prime", "Digits"}

// Report holds every split of every analyzed number.
type Report struct {
	Numbers int
	Splits  []productive.Split
	Failed  int // splits whose A×B+1 is not prime
}

// Analyze computes the splits of each value in order.
func Analyze(values []uint64, p *productive.Predicate) *Report {
	r := &Report{Numbers: len(values)}
	for _, n := range values {
		for _, s := range p.Splits(n) {
			if !s.Prime {
				r.Failed++
			}
			r.Splits = append(r.Splits, s)
		}
	}
	return r
}

// Row is the Parquet record for one split.
type Row struct {
	Number   uint64 `parquet:"number"`
	SplitPos int32  `parquet:"split_pos"`
	A        uint64 `parquet:"a"`
	B        uint64 `parquet:"b"`
	Value    uint64 `parquet:"value"`
	Overflow bool   `parquet:"overflow"`
	Prime    bool   `parquet:"prime"`
	Digits   int32  `parquet:"digits"`
}

func toRow(s productive.Split) Row {
	return Row{
		Number:   s.Number,
		SplitPos: int32(s.Position),
		A:        s.Left,
		B:        s.Right,
		Value:    s.Value,
		Overflow: s.Overflow,
		Prime:    s.Prime,
		Digits:   int32(s.Digits),
	}
}

// WriteCSV writes splits as ';'-separated rows under Header.
// An overflowed split has an empty value column.
func WriteCSV(w io.Writer, splits []productive.Split) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(Header))
	for _, s := range splits {
		record[0] = strconv.FormatUint(s.Number, 10)
		record[1] = strconv.Itoa(s.Position)
		record[2] = strconv.FormatUint(s.Left, 10)
		record[3] = strconv.FormatUint(s.Right, 10)
		record[4] = ""
		if !s.Overflow {
			record[4] = strconv.FormatUint(s.Value, 10)
		}
		record[5] = "no"
		if s.Prime {
			record[5] = "yes"
		}
		record[6] = strconv.Itoa(s.Digits)

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteParquet writes splits as a zstd-compressed Parquet file.
func WriteParquet(w io.Writer, splits []productive.Split) error {
	pw := parquet.NewGenericWriter[Row](w, parquet.Compression(&parquet.Zstd))

	rows := make([]Row, len(splits))
	for i, s := range splits {
		rows[i] = toRow(s)
	}

	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			pw.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteFile writes the report to path in the given format.
func WriteFile(path, format string, r *Report) error {
	var write func(io.Writer, []productive.Split) error
	switch strings.ToLower(format) {
	case FormatCSV, "":
		write = WriteCSV
	case FormatParquet:
		write = WriteParquet
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", format, FormatCSV, FormatParquet)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, r.Splits); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

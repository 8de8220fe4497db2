package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/shell/demodata"
)

const (
	outputAuto  = "auto"
	outputTable = "table"
	outputJSON  = "json"

	timeLayout = "2006-01-02 15:04:05"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	ErrUnknownOutput = errors.New("unknown output format")
)

// printer renders command results either as aligned tables for humans or as JSON for scripts.
type printer struct {
	w    io.Writer
	json bool
}

// newPrinter resolves "auto" to table output on a terminal and JSON otherwise.
func newPrinter(w io.Writer, format string) (printer, error) {
	switch format {
	case outputJSON:
		return printer{w: w, json: true}, nil
	case outputTable:
		return printer{w: w}, nil
	case outputAuto, "":
		return printer{w: w, json: !isTerminal(w)}, nil
	default:
		return printer{}, fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

func (p printer) table(header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func (p printer) transactions(txs []custody.Transaction) error {
	if p.json {
		return p.encode(txs)
	}

	if len(txs) == 0 {
		_, err := fmt.Fprintln(p.w, "no transactions")
		return err
	}

	table := make([][]string, 0, len(txs))
	for _, tx := range txs {
		location := "-"
		if tx.LocationID != nil {
			location = *tx.LocationID
		}

		table = append(table, []string{
			tx.CreatedAt.Format(timeLayout), string(tx.Action), tx.CopyID, tx.BookID, tx.UserID, location, tx.ID,
		})
	}

	return p.table([]string{"TIME", "ACTION", "COPY", "BOOK", "USER", "LOCATION", "TRANSACTION"}, table)
}

func (p printer) transaction(tx custody.Transaction) error {
	if p.json {
		return p.encode(tx)
	}

	return p.transactions([]custody.Transaction{tx})
}

func (p printer) copies(copies []custody.BookCopy) error {
	if p.json {
		return p.encode(copies)
	}

	if len(copies) == 0 {
		_, err := fmt.Fprintln(p.w, "no copies")
		return err
	}

	table := make([][]string, 0, len(copies))
	for _, c := range copies {
		location := c.LocationOrEmpty()
		if location == "" {
			location = "-"
		}

		table = append(table, []string{c.ID, c.BookID, string(c.Status), location})
	}

	return p.table([]string{"COPY", "BOOK", "STATUS", "LOCATION"}, table)
}

func (p printer) bookCopy(c custody.BookCopy) error {
	if p.json {
		return p.encode(c)
	}

	return p.copies([]custody.BookCopy{c})
}

func (p printer) summary(s demodata.Summary) error {
	if p.json {
		return p.encode(s)
	}

	return p.table([]string{"LOCATIONS", "BOOKS", "COPIES", "USERS"}, [][]string{{
		fmt.Sprint(s.Locations), fmt.Sprint(s.Books), fmt.Sprint(s.Copies), fmt.Sprint(s.Users),
	}})
}

func (p printer) message(key, value string) error {
	if p.json {
		return p.encode(map[string]string{key: value})
	}

	_, err := fmt.Fprintf(p.w, "%s: %s\n", key, value)

	return err
}

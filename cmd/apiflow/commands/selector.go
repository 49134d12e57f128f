package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/fivetwenty-io/apiflow/internal/constants"
	"github.com/fivetwenty-io/apiflow/pkg/apiflow"
)

// TerminalSelector implements interactive disambiguation on the
// terminal: candidate records are shown as a table and the user picks
// one by number, or types a value directly for manual parameters.
type TerminalSelector struct {
	reader *bufio.Reader
}

// NewTerminalSelector creates a selector reading from stdin.
func NewTerminalSelector() *TerminalSelector {
	return &TerminalSelector{reader: bufio.NewReader(os.Stdin)}
}

// SelectFromCandidates implements apiflow.Selector.
func (s *TerminalSelector) SelectFromCandidates(_ context.Context, parameter string, records []map[string]interface{}) (interface{}, error) {
	fmt.Fprintf(os.Stdout, "\nMultiple candidates for %q:\n", parameter)

	columns := candidateColumns(parameter, records)
	renderCandidateTable(columns, records)

	for {
		fmt.Fprintf(os.Stdout, "Select 1-%d (or q to cancel): ", len(records))

		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading selection: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "q" || line == "Q" {
			return nil, apiflow.ErrSelectionRejected
		}

		choice, err := strconv.Atoi(line)
		if err != nil || choice < 1 || choice > len(records) {
			fmt.Fprintln(os.Stdout, "Invalid selection")

			continue
		}

		record := records[choice-1]
		if value, ok := apiflow.ExtractValue(record, parameter); ok {
			return value, nil
		}

		// The record does not carry the parameter under any known
		// spelling; fall back to the whole record's id field failing
		// which the raw record is useless.
		return nil, apiflow.ErrValueNotFound
	}
}

// ProvideValue implements apiflow.Selector.
func (s *TerminalSelector) ProvideValue(_ context.Context, parameter string) (interface{}, error) {
	fmt.Fprintf(os.Stdout, "Enter value for %q (empty to skip): ", parameter)

	line, err := s.reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading value: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	return coerceValue(line), nil
}

// candidateColumns picks display columns: the parameter itself, id and
// name-like fields first, then a few more stable-sorted keys.
func candidateColumns(parameter string, records []map[string]interface{}) []string {
	const maxColumns = 5

	seen := map[string]bool{}

	var columns []string

	appendColumn := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			columns = append(columns, name)
		}
	}

	appendColumn(parameter)

	for _, preferred := range []string{"id", "name", "title", "status"} {
		for _, record := range records {
			if _, ok := record[preferred]; ok {
				appendColumn(preferred)

				break
			}
		}
	}

	var rest []string

	for key := range records[0] {
		if !seen[key] {
			rest = append(rest, key)
		}
	}

	sort.Strings(rest)

	for _, key := range rest {
		if len(columns) >= maxColumns {
			break
		}

		appendColumn(key)
	}

	return columns
}

func renderCandidateTable(columns []string, records []map[string]interface{}) {
	table := tablewriter.NewWriter(os.Stdout)

	header := make([]string, 0, len(columns)+1)
	header = append(header, "#")
	header = append(header, columns...)
	table.Header(header)

	for i, record := range records {
		row := make([]string, 0, len(columns)+1)
		row = append(row, strconv.Itoa(i+1))

		for _, column := range columns {
			value, ok := record[column]
			if !ok {
				row = append(row, constants.NotAvailable)

				continue
			}

			row = append(row, truncate(fmt.Sprintf("%v", value), constants.DescriptionDisplayLength))
		}

		_ = table.Append(row)
	}

	_ = table.Render()
}

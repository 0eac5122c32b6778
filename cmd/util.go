package cmd

import (
	"io"
	"strconv"

	"github.com/sisatech/tablewriter"
	"golang.org/x/xerrors"
)

// parseNumbers accepts decimal, 0x hex and 0 octal arguments.
func parseNumbers(args []string) ([]uint64, error) {
	nums := make([]uint64, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return nil, xerrors.Errorf("invalid number %q: %w", arg, err)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

func plainTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator("")
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

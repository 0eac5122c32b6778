package cmd

import (
	"fmt"
	"io"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var flagMatch string

var xattrCmd = &cobra.Command{
	Use:   "xattr INODE",
	Short: "List the extended attributes of an inode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nums, err := parseNumbers(args)
		if err != nil {
			return err
		}
		match, err := glob.Compile(flagMatch, '.')
		if err != nil {
			return xerrors.Errorf("invalid pattern %q: %w", flagMatch, err)
		}

		f, fs, err := openImage()
		if err != nil {
			return err
		}
		defer f.Close()

		it, err := fs.Xattrs(nums[0])
		if err != nil {
			return err
		}
		var rows [][]string
		for {
			e, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if !match.Match(e.FullName()) {
				continue
			}
			value := fmt.Sprintf("%q", e.Value)
			if e.ValueInum != 0 {
				value = fmt.Sprintf("<inode %d>", e.ValueInum)
			}
			rows = append(rows, []string{e.Source.String(), e.FullName(), fmt.Sprint(e.ValueSize), value})
		}
		plainTable(cmd.OutOrStdout(), []string{"source", "name", "size", "value"}, rows)
		return nil
	},
}

func init() {
	xattrCmd.Flags().StringVarP(&flagMatch, "match", "m", "**", "only list attributes whose full name matches this glob")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masahiro331/go-ext4-metadata/ext4"
)

var istatCmd = &cobra.Command{
	Use:   "istat INODE...",
	Short: "Report whether inodes are allocated",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args, "inode", func(fs *ext4.FileSystem, n uint64) (ext4.Status, error) {
			return fs.InodeStatus(n)
		})
	},
}

var bstatCmd = &cobra.Command{
	Use:   "bstat BLOCK...",
	Short: "Report whether blocks are allocated",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args, "block", func(fs *ext4.FileSystem, n uint64) (ext4.Status, error) {
			return fs.BlockStatus(n)
		})
	},
}

func runStatus(cmd *cobra.Command, args []string, kind string, status func(*ext4.FileSystem, uint64) (ext4.Status, error)) error {
	nums, err := parseNumbers(args)
	if err != nil {
		return err
	}
	f, fs, err := openImage()
	if err != nil {
		return err
	}
	defer f.Close()

	var rows [][]string
	for _, n := range nums {
		st, err := status(fs, n)
		if err != nil {
			return err
		}
		rows = append(rows, []string{fmt.Sprint(n), st.String()})
	}
	plainTable(cmd.OutOrStdout(), []string{kind, "status"}, rows)
	return nil
}

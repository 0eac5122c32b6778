package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/masahiro331/go-ext4-metadata/ext4"
)

var groupCmd = &cobra.Command{
	Use:   "group [GROUP...]",
	Short: "Print block group locations and descriptors, all groups by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := parseNumbers(args)
		if err != nil {
			return err
		}
		f, fs, err := openImage()
		if err != nil {
			return err
		}
		defer f.Close()

		g := fs.Geometry()
		if len(groups) == 0 {
			for i := uint64(0); i < g.GroupCount; i++ {
				groups = append(groups, i)
			}
		}

		is64 := g.Features.Is64Bit
		var rows [][]string
		for _, group := range groups {
			gd, err := fs.GroupDescriptor(group)
			if err != nil {
				return err
			}
			rows = append(rows, []string{
				fmt.Sprint(group),
				fmt.Sprint(g.GroupLocation(group)),
				yesNo(g.HasSuperblock(group)),
				fmt.Sprint(gd.BlockBitmap(is64)),
				fmt.Sprint(gd.InodeBitmap(is64)),
				fmt.Sprint(gd.InodeTable(is64)),
				fmt.Sprint(gd.FreeBlocksCount()),
				fmt.Sprint(gd.FreeInodesCount(is64)),
				fmt.Sprint(gd.UsedDirsCount()),
				groupFlags(gd),
			})
		}
		plainTable(cmd.OutOrStdout(), []string{
			"group", "start", "super", "block bitmap", "inode bitmap", "inode table",
			"free blocks", "free inodes", "dirs", "flags",
		}, rows)
		return nil
	},
}

func groupFlags(gd ext4.GroupDescriptor) string {
	var flags []string
	if gd.InodeUninit() {
		flags = append(flags, "INODE_UNINIT")
	}
	if gd.BlockUninit() {
		flags = append(flags, "BLOCK_UNINIT")
	}
	if gd.InodeZeroed() {
		flags = append(flags, "ITABLE_ZEROED")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

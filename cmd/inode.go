package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/masahiro331/go-ext4-metadata/ext4"
)

var inodeCmd = &cobra.Command{
	Use:   "inode INODE",
	Short: "Locate and decode one inode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nums, err := parseNumbers(args)
		if err != nil {
			return err
		}
		ino := nums[0]

		f, fs, err := openImage()
		if err != nil {
			return err
		}
		defer f.Close()

		g := fs.Geometry()
		group, index, err := g.GroupOfInode(ino)
		if err != nil {
			return err
		}
		off, err := fs.InodeOffset(ino)
		if err != nil {
			return err
		}
		inode, err := fs.ReadInode(ino)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		plainTable(w, []string{"field", "value"}, [][]string{
			{"group", fmt.Sprint(group)},
			{"index", fmt.Sprint(index)},
			{"offset", fmt.Sprintf("%d (%#x)", off, off)},
			{"mode", fmt.Sprintf("%#o", inode.Mode)},
			{"type", inodeType(inode)},
			{"uid", fmt.Sprint(inode.UIDFull())},
			{"gid", fmt.Sprint(inode.GIDFull())},
			{"size", fmt.Sprint(inode.GetSize())},
			{"links", fmt.Sprint(inode.LinksCount)},
			{"flags", fmt.Sprintf("%#x", inode.Flags)},
			{"mtime", time.Unix(int64(inode.Mtime), 0).UTC().Format(time.RFC3339)},
			{"xattr block", fmt.Sprint(inode.FileACL(g.Features.Is64Bit))},
			{"extra isize", fmt.Sprint(inode.ExtraIsize)},
		})

		if inode.UsesExtents() {
			extents, err := fs.Extents(ino)
			if err != nil {
				return err
			}
			printExtents(w, extents)
		}
		return nil
	},
}

func inodeType(inode *ext4.Inode) string {
	switch {
	case inode.IsDir():
		return "directory"
	case inode.IsRegular():
		return "regular"
	case inode.IsSymlink():
		return "symlink"
	case inode.IsSocket():
		return "socket"
	default:
		return "other"
	}
}

func printExtents(w io.Writer, extents []ext4.Extent) {
	var rows [][]string
	for _, e := range extents {
		rows = append(rows, []string{
			fmt.Sprint(e.Block),
			fmt.Sprint(e.Start()),
			fmt.Sprint(e.Length()),
			yesNo(e.Unwritten()),
		})
	}
	fmt.Fprintln(w)
	plainTable(w, []string{"logical", "physical", "length", "unwritten"}, rows)
}

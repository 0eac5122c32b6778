package cmd

import (
	"fmt"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/masahiro331/go-ext4-metadata/ext4"
)

var superCmd = &cobra.Command{
	Use:   "super",
	Short: "Print the superblock and the geometry derived from it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, fs, err := openImage()
		if err != nil {
			return err
		}
		defer f.Close()

		sb, g := fs.Superblock(), fs.Geometry()
		rows := [][]string{
			{"volume name", sb.VolumeLabel()},
			{"uuid", sb.FSUUID().String()},
			{"revision", fmt.Sprintf("%d.%d", sb.RevLevel, sb.MinorRevLevel)},
			{"features", strings.Join(featureNames(g.Features), " ")},
			{"size", bytefmt.ByteSize(g.BlockCount * g.BlockSize)},
			{"block size", fmt.Sprint(g.BlockSize)},
			{"cluster ratio", fmt.Sprint(g.ClusterRatio)},
			{"blocks", fmt.Sprint(g.BlockCount)},
			{"free blocks", fmt.Sprint(sb.GetFreeBlockCount())},
			{"reserved blocks", fmt.Sprint(sb.GetReservedBlockCount())},
			{"first data block", fmt.Sprint(g.FirstDataBlock)},
			{"inodes", fmt.Sprint(g.InodeCount)},
			{"free inodes", fmt.Sprint(sb.FreeInodeCount)},
			{"inode size", fmt.Sprint(g.InodeSize)},
			{"blocks per group", fmt.Sprint(g.BlocksPerGroup)},
			{"inodes per group", fmt.Sprint(g.InodesPerGroup)},
			{"groups", fmt.Sprint(g.GroupCount)},
			{"descriptor size", fmt.Sprint(g.DescriptorSize)},
			{"descriptor blocks", fmt.Sprint(g.DescriptorBlocks)},
			{"inode table blocks", fmt.Sprint(g.InodeTableBlocks)},
		}
		if g.Features.MetaBG {
			rows = append(rows, []string{"first meta_bg", fmt.Sprint(g.FirstMetaBG)})
		}
		if g.Features.SparseSuper2 {
			rows = append(rows, []string{"backup groups", fmt.Sprintf("%d %d", g.BackupGroups[0], g.BackupGroups[1])})
		}
		if sb.FeatureCompatHasJournal() {
			rows = append(rows, []string{"journal inode", fmt.Sprint(sb.JournalInum)})
		}
		plainTable(cmd.OutOrStdout(), []string{"field", "value"}, rows)
		return nil
	},
}

func featureNames(f ext4.Features) []string {
	var names []string
	for _, feat := range []struct {
		on   bool
		name string
	}{
		{f.Is64Bit, "64bit"},
		{f.MetaBG, "meta_bg"},
		{f.FlexBG, "flex_bg"},
		{f.SparseSuper, "sparse_super"},
		{f.SparseSuper2, "sparse_super2"},
		{f.ExtAttr, "ext_attr"},
		{f.Bigalloc, "bigalloc"},
		{f.ExtraIsize, "extra_isize"},
	} {
		if feat.on {
			names = append(names, feat.name)
		}
	}
	return names
}

package ext4

// Wide combines a split lo/hi on-disk field. The high half only counts when
// the 64bit incompat feature is set; otherwise it may hold garbage.
func Wide(lo, hi uint32, featureInCompat64bit bool) uint64 {
	if featureInCompat64bit {
		return uint64(hi)<<32 | uint64(lo)
	}
	return uint64(lo)
}

// Join16 combines a 16-bit counter split across the 32 and 64 byte halves
// of a group descriptor. The high half is zero for 32 byte descriptors.
func Join16(lo, hi uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

func divWithRoundUp(a, b uint64) uint64 {
	n := a / b
	if a%b != 0 {
		return n + 1
	}
	return n
}

func roundUp(a, align uint64) uint64 {
	return divWithRoundUp(a, align) * align
}

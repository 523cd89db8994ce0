package finder

// Aggregate drops groups with fewer than two members and fills in the
// group and duplicate counters of info. Every other counter is passed
// through unchanged.
func Aggregate(info RunInfo, groups []Group) (RunInfo, []Group) {
	kept := make([]Group, 0, len(groups))
	members := 0
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		kept = append(kept, g)
		members += len(g)
	}

	info.NumberOfGroups = len(kept)
	info.NumberOfDuplicates = members - len(kept)
	return info, kept
}

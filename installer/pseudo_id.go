package installer

import (
	"github.com/cespare/xxhash/v2"

	"github.com/mcservers/cfinstaller/manifest"
)

// pseudoModID derives a stable, host-independent, non-negative 32-bit ID
// for a pack with no Registry-assigned modId (the archive/standalone
// entry points). xxhash.Sum64 gives the stable 64-bit digest; only the low
// 32 bits are kept since downstream logs and the persisted schema expect
// compact integers the way real Registry mod IDs are.
func pseudoModID(name string) int {
	sum := xxhash.Sum64String(name)
	return absInt32(int32(uint32(sum)))
}

// pseudoFileID reproduces the Java-String.hashCode-style recurrence named
// explicitly by §4.2: seed 7, then for each FileRef in document order fold
// in projectID then fileID with the classic 31*h+x step, wrapping at 32
// bits. This is intentionally NOT delegated to a general-purpose hash
// library since the spec pins the exact algorithm for reproducibility
// across independent implementations.
func pseudoFileID(files []manifest.FileRef) int {
	h := int32(7)
	for _, f := range files {
		h = 31*h + int32(f.ProjectID)
		h = 31*h + int32(f.FileID)
	}
	return absInt32(h)
}

func absInt32(n int32) int {
	if n < 0 {
		if n == -2147483648 {
			return 2147483648
		}
		return int(-n)
	}
	return int(n)
}

package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcservers/cfinstaller/manifest"
)

func TestPseudoModID_StableAcrossCalls(t *testing.T) {
	a := pseudoModID("All the Mods 9")
	b := pseudoModID("All the Mods 9")

	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0)
}

func TestPseudoModID_DifferentNamesDiffer(t *testing.T) {
	a := pseudoModID("All the Mods 9")
	b := pseudoModID("Vault Hunters")

	assert.NotEqual(t, a, b)
}

func TestPseudoFileID_StableForSameOrder(t *testing.T) {
	files := []manifest.FileRef{{ProjectID: 1001, FileID: 2001}, {ProjectID: 1002, FileID: 2002}}

	a := pseudoFileID(files)
	b := pseudoFileID(files)

	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0)
}

func TestPseudoFileID_OrderSensitive(t *testing.T) {
	forward := []manifest.FileRef{{ProjectID: 1001, FileID: 2001}, {ProjectID: 1002, FileID: 2002}}
	reversed := []manifest.FileRef{{ProjectID: 1002, FileID: 2002}, {ProjectID: 1001, FileID: 2001}}

	assert.NotEqual(t, pseudoFileID(forward), pseudoFileID(reversed))
}

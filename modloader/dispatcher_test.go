package modloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInstaller struct {
	called        bool
	mcVersion     string
	loaderVersion string
}

func (r *recordingInstaller) Install(mcVersion, loaderVersion, outputRoot, resultsFile string) error {
	r.called = true
	r.mcVersion = mcVersion
	r.loaderVersion = loaderVersion
	return nil
}

func TestDispatch_Forge(t *testing.T) {
	forge := &recordingInstaller{}
	fabric := &recordingInstaller{}

	err := Dispatch("forge-47.1.0", "1.20.1", "/out", "/out/results.txt", forge, fabric)

	require.NoError(t, err)
	assert.True(t, forge.called)
	assert.False(t, fabric.called)
	assert.Equal(t, "1.20.1", forge.mcVersion)
	assert.Equal(t, "47.1.0", forge.loaderVersion)
}

func TestDispatch_Fabric(t *testing.T) {
	forge := &recordingInstaller{}
	fabric := &recordingInstaller{}

	err := Dispatch("fabric-0.15.0", "1.20.1", "/out", "/out/results.txt", forge, fabric)

	require.NoError(t, err)
	assert.True(t, fabric.called)
	assert.False(t, forge.called)
}

func TestDispatch_MissingSeparatorIsFatal(t *testing.T) {
	forge := &recordingInstaller{}
	fabric := &recordingInstaller{}

	err := Dispatch("neoforge", "1.20.1", "/out", "/out/results.txt", forge, fabric)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedID)
}

func TestDispatch_UnrecognizedFamilyIsSilentNoop(t *testing.T) {
	forge := &recordingInstaller{}
	fabric := &recordingInstaller{}

	err := Dispatch("quilt-0.1.0", "1.20.1", "/out", "/out/results.txt", forge, fabric)

	require.NoError(t, err)
	assert.False(t, forge.called)
	assert.False(t, fabric.called)
}

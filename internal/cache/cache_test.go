package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReaper() *Reaper {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	return NewReaper(log.WithField("test", true))
}

func TestReapRemovesUntouchedEntriesAndKeepsTouched(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.png"), []byte("x"), 0o644))

	newTestReaper().Reap(dir, map[string]bool{"keep": true})

	_, err := os.Stat(filepath.Join(dir, "keep.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "stale.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestReapIgnoresMissingDirectory(t *testing.T) {
	assert.NotPanics(t, func() {
		newTestReaper().Reap(filepath.Join(t.TempDir(), "nope"), map[string]bool{})
	})
}

func TestReapIgnoresNonPNGEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	newTestReaper().Reap(dir, map[string]bool{})

	_, err := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

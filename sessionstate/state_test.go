package sessionstate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestInit_FirstLaunchNoCrash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	clock := &fakeClock{t: time.Unix(1000, 0)}

	s, err := Init(path, clock)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.LaunchesSinceLastCrash)
	assert.EqualValues(t, 1, s.SessionsSinceLastCrash)
	assert.EqualValues(t, 1, s.SessionsSinceLaunch)
	assert.False(t, s.CrashedLastLaunch)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, reloaded.CrashedLastLaunch)
	assert.EqualValues(t, 1, reloaded.LaunchesSinceLastCrash)
	assert.EqualValues(t, 1, reloaded.SessionsSinceLastCrash)
}

func TestStateMonotonicity_NoCrash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	clock := &fakeClock{t: time.Unix(1000, 0)}

	s, err := Init(path, clock)
	require.NoError(t, err)
	prevLaunches := s.LaunchesSinceLastCrash
	prevSessions := s.SessionsSinceLastCrash

	for i := 0; i < 5; i++ {
		clock.advance(time.Second)
		require.NoError(t, s.NotifyAppInForeground(false, path, clock))
		clock.advance(time.Second)
		require.NoError(t, s.NotifyAppInForeground(true, path, clock))
		assert.GreaterOrEqual(t, s.LaunchesSinceLastCrash, prevLaunches)
		assert.GreaterOrEqual(t, s.SessionsSinceLastCrash, prevSessions)
		prevLaunches, prevSessions = s.LaunchesSinceLastCrash, s.SessionsSinceLastCrash
	}
}

func TestNotifyAppCrash_ThenRestart_ResetsAndIncrementsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	clock := &fakeClock{t: time.Unix(1000, 0)}

	s, err := Init(path, clock)
	require.NoError(t, err)

	clock.advance(time.Second)
	scratch := make([]byte, 256)
	require.NoError(t, s.NotifyAppCrash(path, scratch, clock))
	assert.True(t, s.CrashedThisLaunch)

	// Simulate process restart: re-load and re-Init.
	s2, err := Init(path, clock)
	require.NoError(t, err)
	assert.True(t, s2.CrashedLastLaunch)
	assert.False(t, s2.CrashedThisLaunch)
	assert.EqualValues(t, 1, s2.LaunchesSinceLastCrash)
	assert.EqualValues(t, 1, s2.SessionsSinceLastCrash)
}

func TestLoadSaveIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s := &State{
		CrashedThisLaunch:                true,
		ActiveDurationSinceLastCrash:     12.5,
		BackgroundDurationSinceLastCrash: 3.25,
		LaunchesSinceLastCrash:           4,
		SessionsSinceLastCrash:           7,
	}
	require.NoError(t, Save(path, s))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.CrashedThisLaunch, reloaded.CrashedLastLaunch)
	assert.Equal(t, s.ActiveDurationSinceLastCrash, reloaded.ActiveDurationSinceLastCrash)
	assert.Equal(t, s.BackgroundDurationSinceLastCrash, reloaded.BackgroundDurationSinceLastCrash)
	assert.Equal(t, s.LaunchesSinceLastCrash, reloaded.LaunchesSinceLastCrash)
	assert.Equal(t, s.SessionsSinceLastCrash, reloaded.SessionsSinceLastCrash)
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.json")
	s, err := Load(path)
	require.NoError(t, err)
	assert.False(t, s.CrashedLastLaunch)
}

func TestLoad_UnknownFieldsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"crashedLastLaunch":true,"somethingNew":{"nested":true}}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.True(t, s.CrashedLastLaunch)
}

package updater

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salespulse/bridge/internal/crm"
)

type fakeSource struct {
	info  *crm.VersionInfo
	err   error
	calls int
}

func (f *fakeSource) Version(context.Context) (*crm.VersionInfo, error) {
	f.calls++
	return f.info, f.err
}

func TestCheckReportsUpdate(t *testing.T) {
	src := &fakeSource{info: &crm.VersionInfo{Version: "1.4.0", DownloadURL: "https://crm.example.com/bridge/1.4.0"}}

	res, err := Check(context.Background(), src, "1.3.2")
	require.NoError(t, err)

	assert.True(t, res.Available)
	assert.Equal(t, "1.3.2", res.CurrentVersion)
	assert.Equal(t, "1.4.0", res.LatestVersion)
	assert.Equal(t, "https://crm.example.com/bridge/1.4.0", res.DownloadURL)
}

func TestCheckUpToDate(t *testing.T) {
	src := &fakeSource{info: &crm.VersionInfo{Version: "1.4.0"}}

	res, err := Check(context.Background(), src, "1.4.0")
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestCheckDevBuildNeverUpdates(t *testing.T) {
	src := &fakeSource{info: &crm.VersionInfo{Version: "99.0.0"}}

	res, err := Check(context.Background(), src, "dev")
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestCheckPropagatesError(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("boom")}
	_, err := Check(context.Background(), src, "1.0.0")
	assert.Error(t, err)
}

func TestIsNewer(t *testing.T) {
	assert.True(t, isNewer("1.4.0", "1.3.2"))
	assert.True(t, isNewer("2.0.0", "1.9.9"))
	assert.False(t, isNewer("1.3.2", "1.4.0"))
	assert.False(t, isNewer("1.4.0", "1.4.0"))
	assert.True(t, isNewer("1.4.1", "1.4.0"))
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "1.4.0", normalizeVersion("v1.4.0"))
	assert.Equal(t, "1.4.0", normalizeVersion(" 1.4.0 "))
}

func TestBackgroundCheckerNotifiesOncePerVersion(t *testing.T) {
	src := &fakeSource{info: &crm.VersionInfo{Version: "1.4.0"}}

	var notified []string
	b := NewBackgroundChecker(src, "1.3.2", 0, func(r *Result) {
		notified = append(notified, r.LatestVersion)
	})

	b.check(context.Background())
	b.check(context.Background())
	require.Equal(t, []string{"1.4.0"}, notified)

	// A newer release notifies again
	src.info = &crm.VersionInfo{Version: "1.5.0"}
	b.check(context.Background())
	assert.Equal(t, []string{"1.4.0", "1.5.0"}, notified)
}

package ui

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyhoundforty/blueterm/internal"
	"github.com/greyhoundforty/blueterm/internal/cloud"
	"github.com/greyhoundforty/blueterm/internal/session"
)

type fakeProvider struct {
	family    cloud.Family
	resources []cloud.Resource
	actions   atomic.Int32
}

func (p *fakeProvider) Family() cloud.Family               { return p.family }
func (p *fakeProvider) Supports(kind cloud.ActionKind) bool { return true }

func (p *fakeProvider) ListRegions(ctx context.Context) ([]cloud.Region, error) {
	return []cloud.Region{{Name: "us-south", Available: true}, {Name: "eu-de", Available: true}}, nil
}

func (p *fakeProvider) ListResourceGroups(ctx context.Context) ([]cloud.ResourceGroup, error) {
	return []cloud.ResourceGroup{{ID: "rg1", Name: "default", Default: true}}, nil
}

func (p *fakeProvider) ListResources(ctx context.Context, region, group string) ([]cloud.Resource, error) {
	return cloud.CloneResources(p.resources), nil
}

func (p *fakeProvider) Describe(ctx context.Context, region, id string) (*cloud.ResourceDetail, error) {
	for _, r := range p.resources {
		if r.ID == id {
			return &cloud.ResourceDetail{Resource: r, CRN: "crn:v1:" + id}, nil
		}
	}
	return nil, cloud.Errorf(cloud.KindInvalidRequest, "describe", "not found")
}

func (p *fakeProvider) PerformAction(ctx context.Context, region, id string, kind cloud.ActionKind) error {
	p.actions.Add(1)
	return nil
}

func testResources() []cloud.Resource {
	return []cloud.Resource{
		{Family: cloud.FamilyCompute, ID: "0717-aaaaaaaa", Name: "web-1", Status: cloud.StatusRunning, Region: "us-south",
			Attributes: map[string]string{"zone": "us-south-1", "profile": "bx2-2x8"}},
		{Family: cloud.FamilyCompute, ID: "0717-bbbbbbbb", Name: "db-1", Status: cloud.StatusStopped, Region: "us-south"},
	}
}

func newTestDashboard(t *testing.T) (*Dashboard, *session.Coordinator, *[]internal.Preferences) {
	t.Helper()
	p := &fakeProvider{family: cloud.FamilyCompute, resources: testResources()}
	coord, err := session.NewCoordinator(map[cloud.Family]cloud.Provider{cloud.FamilyCompute: p}, session.Options{
		Family:      cloud.FamilyCompute,
		AutoRefresh: true,
	})
	require.NoError(t, err)
	t.Cleanup(coord.Close)
	require.NoError(t, coord.Start(context.Background()))

	var saved []internal.Preferences
	prefs := internal.DefaultPreferences()
	d := NewDashboard(context.Background(), Deps{
		Coordinator: coord,
		Executor:    session.NewExecutor(coord, nil),
		Scheduler:   session.NewScheduler(coord, time.Minute),
		Preferences: prefs,
		SavePreferences: func(fn func(*internal.Preferences)) error {
			fn(&prefs)
			saved = append(saved, prefs)
			return nil
		},
	})
	return d, coord, &saved
}

func providerOf(t *testing.T, coord *session.Coordinator) *fakeProvider {
	t.Helper()
	p, ok := coord.Provider().(*fakeProvider)
	require.True(t, ok)
	return p
}

// runScheduler serves Trigger calls until the test ends.
func runScheduler(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.deps.Scheduler.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func press(d *Dashboard, s string) tea.Cmd {
	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return cmd
}

func TestDashboardRendersSnapshot(t *testing.T) {
	d, _, _ := newTestDashboard(t)

	view := d.View()
	assert.Contains(t, view, "web-1")
	assert.Contains(t, view, "db-1")
	assert.Contains(t, view, "us-south / all groups")
	assert.Contains(t, view, "2 total")
}

func TestDashboardSearchFilters(t *testing.T) {
	d, _, _ := newTestDashboard(t)

	press(d, "/")
	require.Equal(t, modeSearch, d.mode)
	for _, r := range "stopped" {
		press(d, string(r))
	}
	require.Len(t, d.visible, 1)
	assert.Equal(t, "db-1", d.visible[0].Name)

	d.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeTable, d.mode)
	assert.Len(t, d.visible, 2)
}

func TestDashboardActionRunsThroughExecutor(t *testing.T) {
	d, coord, _ := newTestDashboard(t)
	d.table.SetCursor(1) // db-1, stopped

	require.Nil(t, press(d, "s"))
	require.Equal(t, modeConfirm, d.mode)
	assert.Contains(t, d.View(), "This will start db-1")

	cmd := press(d, "y")
	require.NotNil(t, cmd)
	assert.Equal(t, modeTable, d.mode)
	msg := cmd()
	d.Update(msg)

	r, ok := coord.Query().Find("0717-bbbbbbbb")
	require.True(t, ok)
	assert.Equal(t, cloud.StatusStarting, r.Status)
	assert.False(t, d.messageErr)
	assert.Equal(t, "start db-1 accepted", d.message)
}

func TestDashboardInvalidActionShowsError(t *testing.T) {
	d, _, _ := newTestDashboard(t)
	d.table.SetCursor(1)

	press(d, "S")
	_, follow := d.Update(press(d, "y")())
	assert.True(t, d.messageErr)
	assert.Contains(t, d.message, "failed")
	assert.Nil(t, follow, "a rejected action schedules no refresh")
}

func TestDashboardDeclinedActionMakesNoCall(t *testing.T) {
	for _, k := range []string{"s", "S", "r"} {
		t.Run(k, func(t *testing.T) {
			d, coord, _ := newTestDashboard(t)
			p := providerOf(t, coord)
			d.table.SetCursor(0) // web-1, running
			before := coord.Query()

			press(d, k)
			require.Equal(t, modeConfirm, d.mode)
			assert.Nil(t, press(d, "n"))

			assert.Equal(t, modeTable, d.mode)
			assert.Contains(t, d.message, "cancelled")
			assert.Equal(t, int32(0), p.actions.Load())
			assert.Equal(t, before.Resources, coord.Query().Resources)
		})
	}
}

func TestDashboardEscCancelsConfirm(t *testing.T) {
	d, coord, _ := newTestDashboard(t)
	d.table.SetCursor(1)

	press(d, "s")
	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.Equal(t, modeTable, d.mode)
	assert.Equal(t, int32(0), providerOf(t, coord).actions.Load())
}

func TestDashboardAcceptedActionRefreshesAfterDelay(t *testing.T) {
	saved := actionSettleDelay
	actionSettleDelay = 10 * time.Millisecond
	t.Cleanup(func() { actionSettleDelay = saved })

	d, coord, _ := newTestDashboard(t)
	runScheduler(t, d)
	d.table.SetCursor(1) // db-1, stopped

	press(d, "s")
	_, follow := d.Update(press(d, "y")())
	require.NotNil(t, follow)
	assert.Equal(t, cloud.StatusStarting, coord.Query().Resources[1].Status)
	assert.Equal(t, int32(1), providerOf(t, coord).actions.Load())

	msg := follow()
	require.IsType(t, followUpMsg{}, msg)
	_, refresh := d.Update(msg)
	require.NotNil(t, refresh)
	assert.Equal(t, 1, d.busy)

	op := refresh()
	require.IsType(t, opMsg{}, op)
	assert.NoError(t, op.(opMsg).err)
	d.Update(op)
	assert.Equal(t, 0, d.busy)

	// The provider still reports the instance stopped; the re-list wins.
	assert.Equal(t, cloud.StatusStopped, coord.Query().Resources[1].Status)
}

func TestDashboardThemeCyclePersists(t *testing.T) {
	d, _, saved := newTestDashboard(t)

	press(d, "t")
	require.Len(t, *saved, 1)
	assert.Equal(t, Themes[1].Name, (*saved)[0].Theme)
	assert.Equal(t, 1, d.theme)
}

func TestDashboardDetail(t *testing.T) {
	d, _, _ := newTestDashboard(t)

	d.Update(press(d, "d")())
	require.Equal(t, modeDetail, d.mode)
	assert.Contains(t, d.View(), "crn:v1:0717-aaaaaaaa")

	d.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeTable, d.mode)
}

func TestDashboardRegionSwitch(t *testing.T) {
	d, coord, saved := newTestDashboard(t)

	cmd := press(d, "l")
	require.NotNil(t, cmd)
	d.Update(cmd())
	assert.Equal(t, "eu-de", coord.Query().Region)
	assert.Equal(t, "eu-de", (*saved)[len(*saved)-1].LastRegion)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, cloud.FamilyCompute, testResources()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "STATUS"))
	assert.Contains(t, lines[1], "bx2-2x8")
	assert.Contains(t, lines[2], "○ stopped")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a-very-l…", Truncate("a-very-long-name", 9))
	assert.Equal(t, "日本…", Truncate("日本語の名前", 6))
}

func TestThemeIndex(t *testing.T) {
	assert.Equal(t, 0, ThemeIndex("ibm"))
	assert.Equal(t, 2, ThemeIndex("nord"))
	assert.Equal(t, 0, ThemeIndex("textual-dark"))
}

package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/greyhoundforty/blueterm/internal"
	"github.com/greyhoundforty/blueterm/internal/cloud"
	"github.com/greyhoundforty/blueterm/internal/session"
)

type mode int

const (
	modeTable mode = iota
	modeSearch
	modeDetail
	modeGroups
	modeHelp
	modeConfirm
)

// actionSettleDelay is how long after an accepted action the dashboard
// re-lists resources to pick up the provider's status.
var actionSettleDelay = 2 * time.Second

// TokenStatus reports when the credential is renewed next.
type TokenStatus interface {
	NextRefresh() time.Time
	LastError() error
}

// Deps wires the dashboard to the session.
type Deps struct {
	Coordinator *session.Coordinator
	Executor    *session.Executor
	Scheduler   *session.Scheduler
	Token       TokenStatus
	Preferences internal.Preferences
	// SavePreferences persists a preference change; nil disables persistence.
	SavePreferences func(func(*internal.Preferences)) error
	Logger          *zap.Logger
	Now             func() time.Time
}

type (
	snapshotMsg struct{}
	tickMsg     time.Time
	followUpMsg struct{}

	actionMsg struct {
		pending session.PendingAction
		err     error
	}
	opMsg struct {
		op  string
		err error
	}
	detailMsg struct {
		detail *cloud.ResourceDetail
		err    error
	}
	groupsMsg struct {
		groups []cloud.ResourceGroup
		err    error
	}
	toggleMsg struct {
		enabled bool
		err     error
	}
)

// Dashboard is the resource browser.
type Dashboard struct {
	ctx  context.Context
	deps Deps
	sub  *session.Subscription
	log  *zap.Logger

	snap    session.Snapshot
	visible []cloud.Resource
	family  cloud.Family

	mode    mode
	table   table.Model
	search  textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	theme  int
	styles Styles

	detail      *cloud.ResourceDetail
	groups      []cloud.ResourceGroup
	groupCursor int
	busy        int

	confirmKind   cloud.ActionKind
	confirmTarget cloud.Resource

	message    string
	messageErr bool
	now        time.Time

	width, height int
}

// NewDashboard builds the model. ctx bounds every network call it starts.
func NewDashboard(ctx context.Context, deps Deps) *Dashboard {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	theme := ThemeIndex(deps.Preferences.Theme)
	styles := NewStyles(Themes[theme])

	search := textinput.New()
	search.Placeholder = "filter by name, id or status"
	search.Prompt = "/ "
	search.CharLimit = 64

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner))

	d := &Dashboard{
		ctx:     ctx,
		deps:    deps,
		log:     deps.Logger.Named("ui"),
		keys:    defaultKeys(),
		help:    help.New(),
		search:  search,
		spinner: sp,
		theme:   theme,
		styles:  styles,
		now:     deps.Now(),
		table: table.New(
			table.WithFocused(true),
			table.WithHeight(15),
			table.WithWidth(120),
		),
	}
	d.applyStyles()
	d.sub = deps.Coordinator.Subscribe()
	d.sync(deps.Coordinator.Query())
	return d
}

// Run shows the dashboard until the user quits.
func Run(ctx context.Context, deps Deps) error {
	d := NewDashboard(ctx, deps)
	defer deps.Coordinator.Unsubscribe(d.sub)

	p := tea.NewProgram(d, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		d.spinner.Tick,
		waitForSnapshot(d.sub),
		tick(),
	)
}

func waitForSnapshot(sub *session.Subscription) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-sub.C; !ok {
			return nil
		}
		return snapshotMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (d *Dashboard) applyStyles() {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Themes[d.theme].Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(Themes[d.theme].Secondary)
	ts.Selected = d.styles.Selected
	d.table.SetStyles(ts)
	d.spinner.Style = d.styles.Spinner
}

// sync renders snap into the table. Rows are rebuilt from the latest
// snapshot, so dropped notifications only skip intermediate frames.
func (d *Dashboard) sync(snap session.Snapshot) {
	d.snap = snap
	if snap.Family != d.family {
		d.family = snap.Family
		d.table.SetRows(nil)
		cols := Columns(snap.Family)
		tc := make([]table.Column, len(cols))
		for i, c := range cols {
			tc[i] = table.Column{Title: c.Title, Width: c.Width}
		}
		d.table.SetColumns(tc)
	}

	selected := d.selectedID()
	d.visible = snap.Filter(d.search.Value())
	cols := Columns(snap.Family)
	rows := make([]table.Row, len(d.visible))
	cursor := 0
	for i, r := range d.visible {
		rows[i] = Cells(cols, r)
		if r.ID == selected {
			cursor = i
		}
	}
	d.table.SetRows(rows)
	if len(rows) > 0 {
		d.table.SetCursor(cursor)
	}
}

func (d *Dashboard) selectedID() string {
	if r, ok := d.selected(); ok {
		return r.ID
	}
	return ""
}

func (d *Dashboard) selected() (cloud.Resource, bool) {
	i := d.table.Cursor()
	if i < 0 || i >= len(d.visible) {
		return cloud.Resource{}, false
	}
	return d.visible[i], true
}

func (d *Dashboard) setMessage(msg string, isErr bool) {
	d.message, d.messageErr = msg, isErr
}

func (d *Dashboard) savePrefs(fn func(*internal.Preferences)) {
	if d.deps.SavePreferences == nil {
		return
	}
	if err := d.deps.SavePreferences(fn); err != nil {
		d.log.Warn("failed to save preferences", zap.Error(err))
	}
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		d.help.Width = msg.Width
		d.table.SetHeight(max(msg.Height-9, 3))
		return d, nil

	case snapshotMsg:
		d.sync(d.deps.Coordinator.Query())
		return d, waitForSnapshot(d.sub)

	case tickMsg:
		d.now = time.Time(msg)
		return d, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case actionMsg:
		d.busy--
		d.setMessage(msg.pending.Message(), msg.err != nil)
		if msg.err != nil {
			return d, nil
		}
		return d, tea.Tick(actionSettleDelay, func(time.Time) tea.Msg { return followUpMsg{} })

	case followUpMsg:
		return d, d.run("refresh", d.deps.Scheduler.Trigger)

	case opMsg:
		d.busy--
		if msg.err != nil {
			d.setMessage(msg.op+" failed: "+msg.err.Error(), true)
		}
		return d, nil

	case toggleMsg:
		d.busy--
		if msg.err != nil {
			d.setMessage("refresh failed: "+msg.err.Error(), true)
		}
		state := "off"
		if msg.enabled {
			state = "on"
		}
		if msg.err == nil {
			d.setMessage("auto-refresh "+state, false)
		}
		d.savePrefs(func(p *internal.Preferences) { p.AutoRefreshEnabled = msg.enabled })
		return d, nil

	case detailMsg:
		d.busy--
		if msg.err != nil {
			d.setMessage("details failed: "+msg.err.Error(), true)
			return d, nil
		}
		d.detail = msg.detail
		d.mode = modeDetail
		return d, nil

	case groupsMsg:
		d.busy--
		if msg.err != nil {
			d.setMessage("resource groups failed: "+msg.err.Error(), true)
			return d, nil
		}
		d.groups = msg.groups
		d.groupCursor = 0
		for i, g := range d.groups {
			if g.ID == d.snap.ResourceGroup.ID {
				d.groupCursor = i + 1
			}
		}
		d.mode = modeGroups
		return d, nil

	case tea.KeyMsg:
		return d.handleKey(msg)
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return d, tea.Quit
	}
	switch d.mode {
	case modeSearch:
		return d.handleSearchKey(msg)
	case modeDetail, modeHelp:
		if key.Matches(msg, d.keys.Back, d.keys.Quit, d.keys.Help, d.keys.Detail) {
			d.mode = modeTable
			d.detail = nil
		}
		return d, nil
	case modeGroups:
		return d.handleGroupKey(msg)
	case modeConfirm:
		return d.handleConfirmKey(msg)
	}
	return d.handleTableKey(msg)
}

func (d *Dashboard) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		d.mode = modeTable
		return d, d.perform(d.confirmKind, d.confirmTarget)
	case "n", "N", "esc", "q":
		d.mode = modeTable
		d.setMessage(fmt.Sprintf("%s %s cancelled", d.confirmKind, d.confirmTarget.Name), false)
	}
	return d, nil
}

func (d *Dashboard) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		d.search.Blur()
		d.mode = modeTable
		return d, nil
	case tea.KeyEsc:
		d.search.SetValue("")
		d.search.Blur()
		d.mode = modeTable
		d.sync(d.snap)
		return d, nil
	}
	var cmd tea.Cmd
	d.search, cmd = d.search.Update(msg)
	d.sync(d.snap)
	return d, cmd
}

func (d *Dashboard) handleGroupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, d.keys.Back, d.keys.Quit):
		d.mode = modeTable
	case key.Matches(msg, d.keys.Up):
		if d.groupCursor > 0 {
			d.groupCursor--
		}
	case key.Matches(msg, d.keys.Down):
		if d.groupCursor < len(d.groups) {
			d.groupCursor++
		}
	case msg.Type == tea.KeyEnter:
		d.mode = modeTable
		id := ""
		if d.groupCursor > 0 {
			id = d.groups[d.groupCursor-1].ID
		}
		return d, d.run("switch resource group", func(ctx context.Context) error {
			return d.deps.Coordinator.SwitchResourceGroup(ctx, id)
		})
	}
	return d, nil
}

func (d *Dashboard) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, d.keys.Quit):
		return d, tea.Quit

	case key.Matches(msg, d.keys.Help):
		d.mode = modeHelp
		return d, nil

	case key.Matches(msg, d.keys.Search):
		d.mode = modeSearch
		return d, d.search.Focus()

	case key.Matches(msg, d.keys.Back):
		if d.search.Value() != "" {
			d.search.SetValue("")
			d.sync(d.snap)
		}
		return d, nil

	case key.Matches(msg, d.keys.Start):
		d.confirm(cloud.ActionStart)
		return d, nil
	case key.Matches(msg, d.keys.Stop):
		d.confirm(cloud.ActionStop)
		return d, nil
	case key.Matches(msg, d.keys.Reboot):
		d.confirm(cloud.ActionReboot)
		return d, nil

	case key.Matches(msg, d.keys.Refresh):
		d.setMessage("refreshing…", false)
		return d, d.run("refresh", d.deps.Scheduler.Trigger)

	case key.Matches(msg, d.keys.AutoRefresh):
		return d, d.toggleAutoRefresh()

	case key.Matches(msg, d.keys.Detail):
		return d, d.loadDetail()

	case key.Matches(msg, d.keys.PrevRegion):
		return d, d.stepRegion(-1)
	case key.Matches(msg, d.keys.NextRegion):
		return d, d.stepRegion(1)

	case key.Matches(msg, d.keys.Family):
		return d, d.nextFamily()

	case key.Matches(msg, d.keys.Group):
		d.busy++
		return d, func() tea.Msg {
			groups, err := d.deps.Coordinator.ResourceGroups(d.ctx)
			return groupsMsg{groups: groups, err: err}
		}

	case key.Matches(msg, d.keys.Open):
		r, ok := d.selected()
		if !ok {
			return d, nil
		}
		if err := internal.OpenBrowser(r.ConsoleURL()); err != nil {
			d.setMessage("open failed: "+err.Error(), true)
		} else {
			d.setMessage("opened "+r.Name+" in the console", false)
		}
		return d, nil

	case key.Matches(msg, d.keys.Copy):
		r, ok := d.selected()
		if !ok {
			return d, nil
		}
		if err := clipboard.WriteAll(r.ID); err != nil {
			d.setMessage("copy failed: "+err.Error(), true)
		} else {
			d.setMessage("copied "+r.ID, false)
		}
		return d, nil

	case key.Matches(msg, d.keys.Theme):
		d.theme = (d.theme + 1) % len(Themes)
		d.styles = NewStyles(Themes[d.theme])
		d.applyStyles()
		name := Themes[d.theme].Name
		d.setMessage("theme: "+name, false)
		d.savePrefs(func(p *internal.Preferences) { p.Theme = name })
		return d, nil
	}

	if s := msg.String(); len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return d, d.jumpRegion(int(s[0] - '0'))
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	return d, cmd
}

// run executes a blocking session call off the UI loop.
func (d *Dashboard) run(op string, fn func(context.Context) error) tea.Cmd {
	d.busy++
	return func() tea.Msg {
		return opMsg{op: op, err: fn(d.ctx)}
	}
}

// confirm asks before kind is sent for the selected resource.
func (d *Dashboard) confirm(kind cloud.ActionKind) {
	r, ok := d.selected()
	if !ok {
		return
	}
	d.confirmKind, d.confirmTarget = kind, r
	d.mode = modeConfirm
}

func (d *Dashboard) perform(kind cloud.ActionKind, r cloud.Resource) tea.Cmd {
	d.busy++
	d.setMessage(fmt.Sprintf("%s %s…", kind, r.Name), false)
	return func() tea.Msg {
		pa, err := d.deps.Executor.Perform(d.ctx, r.ID, kind)
		return actionMsg{pending: pa, err: err}
	}
}

func (d *Dashboard) loadDetail() tea.Cmd {
	r, ok := d.selected()
	if !ok {
		return nil
	}
	d.busy++
	return func() tea.Msg {
		detail, err := d.deps.Coordinator.Describe(d.ctx, r.ID)
		return detailMsg{detail: detail, err: err}
	}
}

func (d *Dashboard) toggleAutoRefresh() tea.Cmd {
	d.busy++
	sched := d.deps.Scheduler
	return func() tea.Msg {
		err := sched.Toggle(d.ctx)
		return toggleMsg{enabled: sched.Enabled(), err: err}
	}
}

func (d *Dashboard) availableRegions() []cloud.Region {
	var out []cloud.Region
	for _, r := range d.snap.Regions {
		if r.Available {
			out = append(out, r)
		}
	}
	return out
}

func (d *Dashboard) stepRegion(delta int) tea.Cmd {
	regions := d.availableRegions()
	if len(regions) == 0 {
		return nil
	}
	idx := 0
	for i, r := range regions {
		if r.Name == d.snap.Region {
			idx = i
		}
	}
	idx = (idx + delta + len(regions)) % len(regions)
	return d.switchRegion(regions[idx].Name)
}

func (d *Dashboard) jumpRegion(i int) tea.Cmd {
	regions := d.availableRegions()
	if i >= len(regions) {
		return nil
	}
	return d.switchRegion(regions[i].Name)
}

func (d *Dashboard) switchRegion(region string) tea.Cmd {
	if region == d.snap.Region {
		return nil
	}
	d.setMessage("", false)
	d.savePrefs(func(p *internal.Preferences) { p.LastRegion = region })
	return d.run("switch region", func(ctx context.Context) error {
		return d.deps.Coordinator.SwitchRegion(ctx, region)
	})
}

func (d *Dashboard) nextFamily() tea.Cmd {
	next := cloud.Families[0]
	for i, f := range cloud.Families {
		if f == d.snap.Family {
			next = cloud.Families[(i+1)%len(cloud.Families)]
		}
	}
	d.setMessage("", false)
	d.savePrefs(func(p *internal.Preferences) { p.LastFamily = string(next) })
	return d.run("switch resource type", func(ctx context.Context) error {
		return d.deps.Coordinator.SwitchProvider(ctx, next)
	})
}

func (d *Dashboard) View() string {
	switch d.mode {
	case modeDetail:
		return d.viewDetail()
	case modeGroups:
		return d.viewGroups()
	case modeHelp:
		return d.styles.Title.Render("blueterm keys") + "\n" + d.fullHelp()
	}

	var b strings.Builder
	b.WriteString(d.viewHeader())
	b.WriteString("\n")

	switch d.snap.Condition() {
	case session.ConditionUnauthorized:
		b.WriteString(d.styles.Box.BorderForeground(Themes[d.theme].Error).Render(
			d.styles.Error.Render("Not authorized") + "\n\n" + errText(d.snap.LastError) +
				"\n\n" + d.styles.Help.Render("Check the API key; the session retries in the background. R retries now.")))
	case session.ConditionNoData:
		b.WriteString(d.styles.Error.Render("Could not load resources: "+errText(d.snap.LastError)) + "\n")
	case session.ConditionLoading:
		b.WriteString(d.spinner.View() + " Loading " + d.snap.Family.Label() + "…\n")
	default:
		if len(d.snap.Resources) == 0 {
			b.WriteString(d.styles.Muted.Render("No "+d.snap.Family.Label()+" in "+d.snap.RegionLabel()) + "\n")
		} else {
			b.WriteString(d.table.View() + "\n")
		}
	}

	if d.mode == modeSearch || d.search.Value() != "" {
		b.WriteString(d.search.View() + "\n")
	}
	b.WriteString(d.viewStatusBar() + "\n")
	if d.mode == modeConfirm {
		b.WriteString(d.viewConfirm())
		return b.String()
	}
	b.WriteString(d.help.View(d.keys))
	return b.String()
}

func (d *Dashboard) viewConfirm() string {
	r := d.confirmTarget
	prompt := fmt.Sprintf("This will %s %s (%s, currently %s).", d.confirmKind, r.Name, r.ID, r.Status)
	return d.styles.Box.BorderForeground(Themes[d.theme].Warning).Render(
		d.styles.Warning.Render(prompt)+"\n\n"+d.styles.Help.Render("Continue? y confirm • n cancel"))
}

func (d *Dashboard) viewHeader() string {
	var tabs []string
	for _, f := range cloud.Families {
		style := d.styles.Tab
		if f == d.snap.Family {
			style = d.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(f.Label()))
	}
	title := d.styles.Header.Render("blueterm") + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var regions []string
	for i, r := range d.availableRegions() {
		label := fmt.Sprintf("%d:%s", i, r.Name)
		if i > 9 {
			label = r.Name
		}
		if r.Name == d.snap.Region {
			regions = append(regions, d.styles.Selected.Render(label))
		} else {
			regions = append(regions, d.styles.Muted.Render(label))
		}
	}
	group := "all groups"
	if d.snap.ResourceGroup.ID != "" {
		group = d.snap.ResourceGroup.Name
	}
	return title + "\n" + strings.Join(regions, " ") + "  " + d.styles.Subtitle.Render("group: "+group)
}

func (d *Dashboard) viewStatusBar() string {
	parts := []string{d.snap.RegionLabel()}

	var counts []string
	for _, sc := range d.snap.Breakdown() {
		counts = append(counts, d.styles.Status(sc.Status).Render(fmt.Sprintf("%s %d", sc.Status.Symbol(), sc.Count)))
	}
	total := fmt.Sprintf("%d total", len(d.snap.Resources))
	if len(counts) > 0 {
		total += " " + strings.Join(counts, " ")
	}
	parts = append(parts, total)

	switch d.snap.Condition() {
	case session.ConditionStale:
		parts = append(parts, d.styles.Warning.Render("stale: "+errText(d.snap.LastError)))
	case session.ConditionFresh:
		parts = append(parts, "updated "+internal.FormatAge(d.snap.UpdatedAt, d.now))
	}

	if d.deps.Scheduler.Enabled() {
		if next := d.deps.Scheduler.NextFire(); !next.IsZero() {
			parts = append(parts, "auto "+internal.FormatRemaining(next, d.now))
		}
	} else {
		parts = append(parts, "auto off")
	}
	if d.deps.Token != nil {
		if next := d.deps.Token.NextRefresh(); !next.IsZero() {
			parts = append(parts, "token renews "+internal.FormatRemaining(next, d.now))
		}
	}
	if d.busy > 0 || d.snap.InFlight {
		parts = append(parts, d.spinner.View())
	}

	bar := d.styles.StatusBar.Render(strings.Join(parts, " │ "))
	if d.message == "" {
		return bar
	}
	style := d.styles.Success
	if d.messageErr {
		style = d.styles.Error
	}
	return bar + "\n" + style.Render(d.message)
}

func (d *Dashboard) viewDetail() string {
	if d.detail == nil {
		return ""
	}
	det := d.detail
	var b strings.Builder
	b.WriteString(d.styles.Title.Render(det.Name) + "\n")
	rows := []cloud.Field{
		{Name: "ID", Value: det.ID},
		{Name: "Status", Value: string(det.Status) + " (" + det.NativeStatus + ")"},
		{Name: "Region", Value: det.Region},
	}
	if det.CRN != "" {
		rows = append(rows, cloud.Field{Name: "CRN", Value: det.CRN})
	}
	if det.CreatedAt != "" {
		rows = append(rows, cloud.Field{Name: "Created", Value: det.CreatedAt})
	}
	rows = append(rows, det.Fields...)
	width := 0
	for _, f := range rows {
		width = max(width, len(f.Name))
	}
	for _, f := range rows {
		name := d.styles.Header.Render(fmt.Sprintf("%-*s", width, f.Name))
		b.WriteString(name + "  " + f.Value + "\n")
	}
	b.WriteString("\n" + d.styles.Help.Render(det.ConsoleURL()))
	return d.styles.Box.Render(b.String()) + "\n" + d.styles.Help.Render("esc back")
}

func (d *Dashboard) viewGroups() string {
	var b strings.Builder
	b.WriteString(d.styles.Title.Render("Resource group") + "\n")
	names := []string{"All resource groups"}
	for _, g := range d.groups {
		name := g.Name
		if g.Default {
			name += " (default)"
		}
		names = append(names, name)
	}
	for i, name := range names {
		if i == d.groupCursor {
			b.WriteString(d.styles.Selected.Render("> "+name) + "\n")
		} else {
			b.WriteString("  " + name + "\n")
		}
	}
	return d.styles.Box.Render(b.String()) + "\n" + d.styles.Help.Render("↑/↓ move • enter select • esc back")
}

func (d *Dashboard) fullHelp() string {
	h := d.help
	h.ShowAll = true
	return h.View(d.keys) + "\n\n" + d.styles.Help.Render("0-9 jump to region • esc back")
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

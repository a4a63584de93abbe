package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-south"

const subscriptionBuffer = 16

// Subscription receives a snapshot after every state change. Slow readers
// miss intermediate snapshots rather than delay a commit.
type Subscription struct {
	ID string
	C  chan Snapshot

	mu     sync.Mutex
	closed bool
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.C)
		s.closed = true
	}
}

// Options configures a Coordinator.
type Options struct {
	Family        cloud.Family
	DefaultRegion string
	AutoRefresh   bool
	Logger        *zap.Logger
	Now           func() time.Time
}

// ticket is one issued resource load. Its result is committed only when no
// newer load was issued after it.
type ticket struct {
	seq      uint64
	provider cloud.Provider
	family   cloud.Family
	region   string
	group    string
}

func (t ticket) matchesLocked(s Snapshot) bool {
	return t.family == s.Family && t.region == s.Region && t.group == s.ResourceGroup.ID
}

// Coordinator owns the session state. All mutations go through its methods.
// Network calls are made without holding the lock; results are committed
// under it, guarded by request sequence numbers.
type Coordinator struct {
	providers     map[cloud.Family]cloud.Provider
	defaultRegion string
	logger        *zap.Logger
	now           func() time.Time

	mu    sync.Mutex
	state Snapshot

	// issued is the sequence number of the newest resource load.
	issued uint64
	// selection is bumped by every provider, region or group switch.
	selection uint64
	// epoch is bumped by every authoritative commit and every switch.
	epoch    uint64
	inflight int

	regionCache map[cloud.Family][]cloud.Region
	groups      []cloud.ResourceGroup

	subs   map[string]*Subscription
	closed bool
}

// NewCoordinator creates a coordinator over one provider per family.
func NewCoordinator(providers map[cloud.Family]cloud.Provider, opts Options) (*Coordinator, error) {
	if opts.Family == "" {
		opts.Family = cloud.FamilyCompute
	}
	if _, ok := providers[opts.Family]; !ok {
		return nil, fmt.Errorf("no provider for family %s", opts.Family)
	}
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = DefaultRegion
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Coordinator{
		providers:     providers,
		defaultRegion: opts.DefaultRegion,
		logger:        opts.Logger.Named("session"),
		now:           opts.Now,
		state: Snapshot{
			Family:      opts.Family,
			Region:      opts.DefaultRegion,
			AutoRefresh: opts.AutoRefresh,
		},
		regionCache: make(map[cloud.Family][]cloud.Region),
		subs:        make(map[string]*Subscription),
	}, nil
}

// Query returns a copy of the current state. It never blocks on I/O.
func (c *Coordinator) Query() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := c.state.clone()
	s.InFlight = c.inflight > 0
	return s
}

// Provider returns the adapter of the active family.
func (c *Coordinator) Provider() cloud.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providers[c.state.Family]
}

// Start loads the regions of the active family, the resource groups and the
// first resource set.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	sel := c.selection
	family := c.state.Family
	c.mu.Unlock()

	if err := c.loadRegions(ctx, family, sel); err != nil {
		return err
	}
	if _, err := c.ResourceGroups(ctx); err != nil {
		// The group filter is optional; listing continues across all groups.
		c.logger.Warn("failed to load resource groups", zap.Error(err))
	}
	return c.Refresh(ctx)
}

// Close drops every subscription. Later commits are still applied but not published.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, sub := range c.subs {
		sub.close()
		delete(c.subs, id)
	}
}

// Subscribe registers for change notifications.
func (c *Coordinator) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription{ID: uuid.NewString(), C: make(chan Snapshot, subscriptionBuffer)}
	if c.closed {
		sub.close()
		return sub
	}
	c.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes and closes sub.
func (c *Coordinator) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[sub.ID]; ok {
		sub.close()
		delete(c.subs, sub.ID)
	}
}

func (c *Coordinator) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, sub := range c.subs {
		select {
		case sub.C <- snap:
		default:
			c.logger.Debug("subscriber full, dropping snapshot", zap.String("subscription", sub.ID))
		}
	}
}

// SwitchProvider activates family. The resource set is cleared in the same
// commit that relabels the state, then regions and resources are reloaded.
func (c *Coordinator) SwitchProvider(ctx context.Context, family cloud.Family) error {
	c.mu.Lock()
	if _, ok := c.providers[family]; !ok {
		c.mu.Unlock()
		return cloud.Errorf(cloud.KindInvalidRequest, "switch provider", "unsupported family %q", family)
	}
	c.selection++
	c.issued++
	c.epoch++
	sel := c.selection
	c.state = Snapshot{
		Family:         family,
		Region:         c.pickRegionLocked(family, ""),
		Regions:        c.regionCache[family],
		ResourceGroups: c.groups,
		AutoRefresh:    c.state.AutoRefresh,
	}
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("switched provider", zap.String("family", string(family)))

	if err := c.loadRegions(ctx, family, sel); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// SwitchRegion activates region for the current family and reloads resources.
func (c *Coordinator) SwitchRegion(ctx context.Context, region string) error {
	if region == "" {
		return cloud.Errorf(cloud.KindInvalidRegion, "switch region", "empty region")
	}
	c.mu.Lock()
	if cached, ok := c.regionCache[c.state.Family]; ok && !hasRegion(cached, region) {
		c.mu.Unlock()
		return cloud.Errorf(cloud.KindInvalidRegion, "switch region", "region %q is not available for %s", region, c.state.Family.Label())
	}
	c.beginSwitchLocked()
	c.state.Region = region
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("switched region", zap.String("region", region))
	return c.Refresh(ctx)
}

// SwitchResourceGroup sets the group filter; an empty id selects all groups.
func (c *Coordinator) SwitchResourceGroup(ctx context.Context, groupID string) error {
	c.mu.Lock()
	group := cloud.ResourceGroup{}
	if groupID != "" {
		found := false
		for _, g := range c.groups {
			if g.ID == groupID {
				group, found = g, true
				break
			}
		}
		if !found {
			if c.groups != nil {
				c.mu.Unlock()
				return cloud.Errorf(cloud.KindInvalidRequest, "switch resource group", "unknown resource group %q", groupID)
			}
			group = cloud.ResourceGroup{ID: groupID, Name: groupID}
		}
	}
	c.beginSwitchLocked()
	c.state.ResourceGroup = group
	c.publishLocked()
	c.mu.Unlock()

	c.logger.Info("switched resource group", zap.String("group", group.Name))
	return c.Refresh(ctx)
}

// beginSwitchLocked invalidates in-flight loads and clears the resource set.
func (c *Coordinator) beginSwitchLocked() {
	c.selection++
	c.issued++
	c.epoch++
	c.state.Resources = nil
	c.state.Loaded = false
	c.state.LastError = nil
	c.state.UpdatedAt = time.Time{}
}

// Refresh re-lists resources for the current selection. The result is
// committed only if no newer load was issued meanwhile. A failure keeps the
// last resource set and records the error.
func (c *Coordinator) Refresh(ctx context.Context) error {
	t := c.issue()
	res, err := t.provider.ListResources(ctx, t.region, t.group)
	c.commit(t, res, err)
	return err
}

func (c *Coordinator) issue() ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.inflight++
	t := ticket{
		seq:      c.issued,
		provider: c.providers[c.state.Family],
		family:   c.state.Family,
		region:   c.state.Region,
		group:    c.state.ResourceGroup.ID,
	}
	if c.inflight == 1 {
		c.publishLocked()
	}
	return t
}

func (c *Coordinator) commit(t ticket, res []cloud.Resource, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if t.seq != c.issued || !t.matchesLocked(c.state) {
		c.logger.Debug("discarding stale result",
			zap.Uint64("seq", t.seq),
			zap.Uint64("issued", c.issued),
			zap.String("region", t.region),
			zap.Error(err))
		if c.inflight == 0 {
			c.publishLocked()
		}
		return
	}

	if err != nil {
		c.state.LastError = err
		if cloud.IsKind(err, cloud.KindAuth) {
			c.state.Fatal = true
		}
		c.logger.Warn("refresh failed",
			zap.String("family", string(t.family)),
			zap.String("region", t.region),
			zap.Error(err))
		c.publishLocked()
		return
	}

	c.epoch++
	c.state.Resources = cloud.CloneResources(res)
	c.state.Loaded = true
	c.state.UpdatedAt = c.now()
	c.state.LastError = nil
	c.state.Fatal = false
	c.publishLocked()
}

// ReportAuth records the outcome of a credential refresh. A failure marks the
// session unauthorized; a later success clears that mark.
func (c *Coordinator) ReportAuth(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state.LastError = cloud.Classify(err, cloud.KindAuth, "authenticate")
		c.state.Fatal = true
	} else if c.state.Fatal {
		c.state.Fatal = false
		if cloud.IsKind(c.state.LastError, cloud.KindAuth) {
			c.state.LastError = nil
		}
	} else {
		return
	}
	c.publishLocked()
}

// SetAutoRefresh records the auto-refresh flag exposed to preference storage.
func (c *Coordinator) SetAutoRefresh(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.AutoRefresh == enabled {
		return
	}
	c.state.AutoRefresh = enabled
	c.publishLocked()
}

// Regions returns the cached regions of the active family, loading them on first use.
func (c *Coordinator) Regions(ctx context.Context) ([]cloud.Region, error) {
	c.mu.Lock()
	family := c.state.Family
	sel := c.selection
	cached, ok := c.regionCache[family]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	if err := c.loadRegions(ctx, family, sel); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regionCache[family], nil
}

// loadRegions fills the region cache of family and settles the active region.
// Nothing is committed when another switch happened meanwhile.
func (c *Coordinator) loadRegions(ctx context.Context, family cloud.Family, sel uint64) error {
	c.mu.Lock()
	_, cached := c.regionCache[family]
	p := c.providers[family]
	c.mu.Unlock()

	var regions []cloud.Region
	if !cached {
		var err error
		regions, err = p.ListRegions(ctx)
		if err != nil {
			c.mu.Lock()
			if c.selection == sel {
				c.state.LastError = err
				if cloud.IsKind(err, cloud.KindAuth) {
					c.state.Fatal = true
				}
				c.publishLocked()
			}
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !cached {
		c.regionCache[family] = regions
	}
	if c.selection != sel || c.state.Family != family {
		return nil
	}
	c.state.Regions = c.regionCache[family]
	if picked := c.pickRegionLocked(family, c.state.Region); picked != c.state.Region {
		// Relabelling is a selection change: loads for the old region must not land.
		c.beginSwitchLocked()
		c.state.Region = picked
	}
	c.publishLocked()
	return nil
}

// pickRegionLocked keeps current when the family offers it, otherwise prefers
// the configured default and then the first available region.
func (c *Coordinator) pickRegionLocked(family cloud.Family, current string) string {
	regions, ok := c.regionCache[family]
	if !ok || len(regions) == 0 {
		if current != "" {
			return current
		}
		return c.defaultRegion
	}
	if current != "" && hasRegion(regions, current) {
		return current
	}
	if hasRegion(regions, c.defaultRegion) {
		return c.defaultRegion
	}
	for _, r := range regions {
		if r.Available {
			return r.Name
		}
	}
	return regions[0].Name
}

func hasRegion(regions []cloud.Region, name string) bool {
	for _, r := range regions {
		if r.Name == name {
			return true
		}
	}
	return false
}

// ResourceGroups returns the account's resource groups, loaded once per session.
func (c *Coordinator) ResourceGroups(ctx context.Context) ([]cloud.ResourceGroup, error) {
	c.mu.Lock()
	if c.groups != nil {
		defer c.mu.Unlock()
		return c.groups, nil
	}
	p := c.providers[cloud.FamilyCompute]
	if p == nil {
		p = c.providers[c.state.Family]
	}
	c.mu.Unlock()

	groups, err := p.ListResourceGroups(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []cloud.ResourceGroup{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = groups
	c.state.ResourceGroups = groups
	c.publishLocked()
	return groups, nil
}

// Describe loads the detail of a resource of the active family and region.
func (c *Coordinator) Describe(ctx context.Context, id string) (*cloud.ResourceDetail, error) {
	c.mu.Lock()
	p := c.providers[c.state.Family]
	region := c.state.Region
	if _, ok := c.state.Find(id); !ok {
		c.mu.Unlock()
		return nil, cloud.Errorf(cloud.KindInvalidRequest, "describe", "unknown resource %q", id)
	}
	c.mu.Unlock()

	detail, err := p.Describe(ctx, region, id)
	if err != nil {
		c.noteAuth(err)
		return nil, err
	}
	return detail, nil
}

// noteAuth marks the session unauthorized when an explicit operation hit an AuthError.
func (c *Coordinator) noteAuth(err error) {
	if !cloud.IsKind(err, cloud.KindAuth) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Fatal = true
	c.state.LastError = err
	c.publishLocked()
}

// optimistic records a locally applied status so it can be reverted.
type optimistic struct {
	id       string
	family   cloud.Family
	region   string
	epoch    uint64
	previous cloud.Status
	applied  cloud.Status
}

// actionClaim is a validated action on a resource of the active selection.
type actionClaim struct {
	res      cloud.Resource
	provider cloud.Provider
	region   string
	opt      optimistic
	applied  bool
}

// claimAction validates kind against the current status of id and applies the
// optimistic status in the same critical section, so two submissions of the
// same action cannot both pass validation.
func (c *Coordinator) claimAction(id string, kind cloud.ActionKind) (actionClaim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.state.Resources {
		if c.state.Resources[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return actionClaim{}, cloud.Errorf(cloud.KindInvalidRequest, "perform action", "unknown resource %q", id)
	}
	r := &c.state.Resources[idx]
	cl := actionClaim{
		res:      r.Clone(),
		provider: c.providers[c.state.Family],
		region:   c.state.Region,
	}

	if !cl.provider.Supports(kind) {
		return cl, cloud.Errorf(cloud.KindInvalidRequest, "perform action",
			"%s is not supported for %s", kind, cl.provider.Family().Label())
	}
	if !cloud.CanPerform(r.Status, kind) {
		return cl, cloud.Errorf(cloud.KindInvalidStateTransition, "perform action",
			"cannot %s %s while it is %s", kind, r.Name, r.Status)
	}

	if status, ok := cloud.OptimisticStatus(kind); ok {
		cl.opt = optimistic{
			id:       id,
			family:   c.state.Family,
			region:   c.state.Region,
			epoch:    c.epoch,
			previous: r.Status,
			applied:  status,
		}
		cl.applied = true
		r.Status = status
		c.publishLocked()
	}
	return cl, nil
}

// revertOptimistic restores the previous status if nothing authoritative
// replaced the optimistic one.
func (c *Coordinator) revertOptimistic(o optimistic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != o.epoch || c.state.Family != o.family || c.state.Region != o.region {
		return
	}
	for i := range c.state.Resources {
		r := &c.state.Resources[i]
		if r.ID == o.id && r.Status == o.applied {
			r.Status = o.previous
			c.publishLocked()
			return
		}
	}
}

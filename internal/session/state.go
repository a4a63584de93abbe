// Package session owns the in-memory view of one provider family, region and
// resource group selection, and serializes every refresh, switch and action
// that mutates it.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// Condition summarizes how trustworthy a snapshot's resource set is.
type Condition int

const (
	// ConditionLoading is a first load still in flight.
	ConditionLoading Condition = iota
	// ConditionFresh is the result of the last successful query.
	ConditionFresh
	// ConditionStale is valid data whose latest refresh failed.
	ConditionStale
	// ConditionNoData means the first load failed.
	ConditionNoData
	// ConditionUnauthorized means the credential is unusable.
	ConditionUnauthorized
)

func (c Condition) String() string {
	switch c {
	case ConditionFresh:
		return "fresh"
	case ConditionStale:
		return "stale"
	case ConditionNoData:
		return "no data"
	case ConditionUnauthorized:
		return "unauthorized"
	default:
		return "loading"
	}
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Family         cloud.Family
	Region         string
	ResourceGroup  cloud.ResourceGroup // zero value means all groups
	Regions        []cloud.Region
	ResourceGroups []cloud.ResourceGroup

	// Resources is ordered as returned by the last successful query.
	Resources []cloud.Resource
	Loaded    bool
	UpdatedAt time.Time

	LastError error
	// Fatal is set by an AuthError and cleared by the next successful load.
	Fatal bool

	AutoRefresh bool
	InFlight    bool
}

// Condition derives the data condition from the error and load flags.
func (s Snapshot) Condition() Condition {
	switch {
	case s.Fatal:
		return ConditionUnauthorized
	case s.LastError != nil && s.Loaded:
		return ConditionStale
	case s.LastError != nil:
		return ConditionNoData
	case s.Loaded:
		return ConditionFresh
	default:
		return ConditionLoading
	}
}

// Counts returns the number of resources per status.
func (s Snapshot) Counts() map[cloud.Status]int {
	counts := make(map[cloud.Status]int)
	for _, r := range s.Resources {
		counts[r.Status]++
	}
	return counts
}

// Find returns the resource with id.
func (s Snapshot) Find(id string) (cloud.Resource, bool) {
	for _, r := range s.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return cloud.Resource{}, false
}

// Filter returns the resources whose name, id or status contain query,
// case-insensitively. An empty query returns every resource.
func (s Snapshot) Filter(query string) []cloud.Resource {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return s.Resources
	}
	var out []cloud.Resource
	for _, r := range s.Resources {
		if strings.Contains(strings.ToLower(r.Name), query) ||
			strings.Contains(strings.ToLower(r.ID), query) ||
			strings.Contains(string(r.Status), query) {
			out = append(out, r)
		}
	}
	return out
}

// StatusCount is one line of a status breakdown.
type StatusCount struct {
	Status cloud.Status
	Count  int
}

// Breakdown returns the non-zero status counts, most frequent first.
func (s Snapshot) Breakdown() []StatusCount {
	var out []StatusCount
	for status, n := range s.Counts() {
		out = append(out, StatusCount{Status: status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// RegionLabel is the region plus the resource group filter.
func (s Snapshot) RegionLabel() string {
	if s.ResourceGroup.ID == "" {
		return s.Region + " / all groups"
	}
	return s.Region + " / " + s.ResourceGroup.Name
}

func (s Snapshot) clone() Snapshot {
	s.Resources = cloud.CloneResources(s.Resources)
	s.Regions = append([]cloud.Region(nil), s.Regions...)
	s.ResourceGroups = append([]cloud.ResourceGroup(nil), s.ResourceGroups...)
	return s
}

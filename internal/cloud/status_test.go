package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func isKnownStatus(s Status) bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func TestStatusMappingIsTotal(t *testing.T) {
	natives := map[Family][]string{
		FamilyCompute: {
			"running", "stopped", "starting", "stopping", "pending", "failed",
			"deleting", "restarting", "resuming", "suspending", "suspended", "stabilizing",
		},
		FamilyKubernetes: {
			"normal", "warning", "critical", "deploying", "deployed", "pending",
			"requested", "updating", "deleting", "deleted", "aborted", "unsupported",
		},
		FamilyServerless: {
			"active", "inactive", "creating", "deleting", "pending_removal",
			"hard_deleting", "soft_deleted", "failed", "preparing",
		},
	}

	for family, values := range natives {
		mapper := StatusMapper(family)
		for _, native := range append(values, "", "definitely-not-a-status") {
			got := mapper(native)
			assert.True(t, isKnownStatus(got), "%s: %q mapped to unknown %q", family, native, got)
		}
		assert.Equal(t, StatusPending, mapper("definitely-not-a-status"), "fallback for %s", family)
	}
}

func TestStatusMappingExamples(t *testing.T) {
	tests := []struct {
		mapper func(string) Status
		native string
		want   Status
	}{
		{MapInstanceStatus, "running", StatusRunning},
		{MapInstanceStatus, "Stopped", StatusStopped},
		{MapInstanceStatus, "suspended", StatusStopped},
		{MapClusterState, "normal", StatusRunning},
		{MapClusterState, "critical", StatusCritical},
		{MapClusterState, "deploying", StatusStarting},
		{MapProjectStatus, "active", StatusRunning},
		{MapProjectStatus, "soft_deleted", StatusStopped},
		{MapProjectStatus, " inactive ", StatusStopped},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.mapper(tt.native), tt.native)
	}
}

func TestCanPerformMatchesTransitionTable(t *testing.T) {
	allowed := map[ActionKind]map[Status]bool{
		ActionStart:  {StatusStopped: true, StatusFailed: true},
		ActionStop:   {StatusRunning: true},
		ActionReboot: {StatusRunning: true},
	}

	for _, s := range Statuses {
		for kind, from := range allowed {
			assert.Equal(t, from[s], CanPerform(s, kind), "%s from %s", kind, s)
		}
		assert.True(t, CanPerform(s, ActionLoadDetail), "load-detail from %s", s)
	}
}

func TestOptimisticStatus(t *testing.T) {
	s, ok := OptimisticStatus(ActionStart)
	assert.True(t, ok)
	assert.Equal(t, StatusStarting, s)

	s, ok = OptimisticStatus(ActionStop)
	assert.True(t, ok)
	assert.Equal(t, StatusStopping, s)

	_, ok = OptimisticStatus(ActionLoadDetail)
	assert.False(t, ok)
}

func TestParseFamilyAndAction(t *testing.T) {
	f, err := ParseFamily("roks")
	assert.NoError(t, err)
	assert.Equal(t, FamilyOpenShift, f)

	_, err = ParseFamily("mainframe")
	assert.Error(t, err)

	k, err := ParseActionKind("restart")
	assert.NoError(t, err)
	assert.Equal(t, ActionReboot, k)

	_, err = ParseActionKind("explode")
	assert.True(t, IsKind(err, KindInvalidRequest))
}

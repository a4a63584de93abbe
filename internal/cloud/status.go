package cloud

import "strings"

// Every mapper below is total: unrecognized native values map to StatusPending.

var instanceStatuses = map[string]Status{
	"running":     StatusRunning,
	"stopped":     StatusStopped,
	"starting":    StatusStarting,
	"stopping":    StatusStopping,
	"pending":     StatusPending,
	"failed":      StatusFailed,
	"deleting":    StatusDeleting,
	"restarting":  StatusRestarting,
	"resuming":    StatusStarting,
	"suspending":  StatusStopping,
	"suspended":   StatusStopped,
	"stabilizing": StatusPending,
}

var clusterStates = map[string]Status{
	"normal":      StatusRunning,
	"warning":     StatusWarning,
	"critical":    StatusCritical,
	"deploying":   StatusStarting,
	"deployed":    StatusStarting,
	"pending":     StatusPending,
	"requested":   StatusPending,
	"updating":    StatusRestarting,
	"deleting":    StatusDeleting,
	"deleted":     StatusStopped,
	"aborted":     StatusFailed,
	"unsupported": StatusWarning,
}

var projectStatuses = map[string]Status{
	"active":          StatusRunning,
	"inactive":        StatusStopped,
	"creating":        StatusStarting,
	"deleting":        StatusDeleting,
	"pending_removal": StatusDeleting,
	"hard_deleting":   StatusDeleting,
	"soft_deleted":    StatusStopped,
	"failed":          StatusFailed,
	"preparing":       StatusPending,
}

func mapStatus(table map[string]Status, native string) Status {
	if s, ok := table[strings.ToLower(strings.TrimSpace(native))]; ok {
		return s
	}
	return StatusPending
}

// MapInstanceStatus maps a VPC instance status.
func MapInstanceStatus(native string) Status { return mapStatus(instanceStatuses, native) }

// MapClusterState maps an IKS/ROKS cluster state.
func MapClusterState(native string) Status { return mapStatus(clusterStates, native) }

// MapProjectStatus maps a Code Engine project status.
func MapProjectStatus(native string) Status { return mapStatus(projectStatuses, native) }

// StatusMapper returns the native status mapper of a family.
func StatusMapper(f Family) func(string) Status {
	switch f {
	case FamilyKubernetes, FamilyOpenShift:
		return MapClusterState
	case FamilyServerless:
		return MapProjectStatus
	default:
		return MapInstanceStatus
	}
}

// transitions is the fixed table of statuses an action may be requested from.
// ActionLoadDetail is valid from every status and is not listed.
var transitions = map[ActionKind][]Status{
	ActionStart:  {StatusStopped, StatusFailed},
	ActionStop:   {StatusRunning},
	ActionReboot: {StatusRunning},
}

// CanPerform reports whether kind is a valid request for a resource in status s.
func CanPerform(s Status, kind ActionKind) bool {
	if kind == ActionLoadDetail {
		return true
	}
	for _, allowed := range transitions[kind] {
		if allowed == s {
			return true
		}
	}
	return false
}

// OptimisticStatus is the status shown locally once kind has been submitted.
func OptimisticStatus(kind ActionKind) (Status, bool) {
	switch kind {
	case ActionStart:
		return StatusStarting, true
	case ActionStop:
		return StatusStopping, true
	case ActionReboot:
		return StatusRestarting, true
	}
	return "", false
}

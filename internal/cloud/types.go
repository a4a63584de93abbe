package cloud

import (
	"fmt"
	"strings"
)

// Family identifies one category of managed resource.
type Family string

const (
	FamilyCompute    Family = "compute-instance"
	FamilyKubernetes Family = "k8s-cluster"
	FamilyOpenShift  Family = "openshift-cluster"
	FamilyServerless Family = "serverless-project"
)

// Families lists every supported family in display order.
var Families = []Family{FamilyCompute, FamilyKubernetes, FamilyOpenShift, FamilyServerless}

// Label returns the human readable name of the family.
func (f Family) Label() string {
	switch f {
	case FamilyCompute:
		return "VPC Instances"
	case FamilyKubernetes:
		return "Kubernetes"
	case FamilyOpenShift:
		return "OpenShift"
	case FamilyServerless:
		return "Code Engine"
	default:
		return string(f)
	}
}

// ParseFamily accepts the canonical family tag or a short alias (vpc, iks, roks, ce).
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compute-instance", "compute", "vpc", "vsi", "instances":
		return FamilyCompute, nil
	case "k8s-cluster", "k8s", "iks", "kubernetes":
		return FamilyKubernetes, nil
	case "openshift-cluster", "openshift", "roks":
		return FamilyOpenShift, nil
	case "serverless-project", "serverless", "ce", "codeengine", "code-engine":
		return FamilyServerless, nil
	}
	return "", fmt.Errorf("unknown resource family %q", s)
}

// Status is the cross-provider resource status.
type Status string

const (
	StatusRunning    Status = "running"
	StatusStopped    Status = "stopped"
	StatusStarting   Status = "starting"
	StatusStopping   Status = "stopping"
	StatusPending    Status = "pending"
	StatusFailed     Status = "failed"
	StatusDeleting   Status = "deleting"
	StatusRestarting Status = "restarting"

	// Cluster health extensions.
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Statuses lists every status value.
var Statuses = []Status{
	StatusRunning, StatusStopped, StatusStarting, StatusStopping, StatusPending,
	StatusFailed, StatusDeleting, StatusRestarting, StatusWarning, StatusCritical,
}

// Symbol returns a compact indicator for table display.
func (s Status) Symbol() string {
	switch s {
	case StatusRunning:
		return "●"
	case StatusStopped:
		return "○"
	case StatusStarting:
		return "◐"
	case StatusStopping:
		return "◑"
	case StatusPending:
		return "◎"
	case StatusFailed:
		return "✗"
	case StatusDeleting:
		return "⊗"
	case StatusRestarting:
		return "↻"
	case StatusWarning:
		return "▲"
	case StatusCritical:
		return "■"
	default:
		return "?"
	}
}

// Transitional reports whether the status is expected to change on its own.
func (s Status) Transitional() bool {
	switch s {
	case StatusStarting, StatusStopping, StatusPending, StatusDeleting, StatusRestarting:
		return true
	}
	return false
}

// ActionKind is an operation the operator can request on a resource.
type ActionKind string

const (
	ActionStart      ActionKind = "start"
	ActionStop       ActionKind = "stop"
	ActionReboot     ActionKind = "reboot"
	ActionLoadDetail ActionKind = "load-detail"
)

// ParseActionKind parses an action name.
func ParseActionKind(s string) (ActionKind, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActionStart:
		return ActionStart, nil
	case ActionStop:
		return ActionStop, nil
	case ActionReboot, "restart":
		return ActionReboot, nil
	case ActionLoadDetail, "describe", "detail":
		return ActionLoadDetail, nil
	}
	return "", NewError(KindInvalidRequest, "parse action", fmt.Errorf("unknown action %q", s))
}

// Region is a provider region.
type Region struct {
	Name      string `json:"name" yaml:"name"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Available bool   `json:"available" yaml:"available"`
}

func (r Region) String() string { return r.Name }

// ResourceGroup is an account resource group used as a listing filter.
type ResourceGroup struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Default bool   `json:"default" yaml:"default"`
	State   string `json:"state" yaml:"state"`
}

// Resource is the normalized summary of one manageable unit.
type Resource struct {
	Family          Family            `json:"family" yaml:"family"`
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name" yaml:"name"`
	Status          Status            `json:"status" yaml:"status"`
	NativeStatus    string            `json:"native_status" yaml:"native_status"`
	Region          string            `json:"region" yaml:"region"`
	ResourceGroupID string            `json:"resource_group_id" yaml:"resource_group_id"`
	Attributes      map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// ShortID returns the first 8 characters of the id.
func (r Resource) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// Attr returns an attribute or "-" when absent.
func (r Resource) Attr(key string) string {
	if v, ok := r.Attributes[key]; ok && v != "" {
		return v
	}
	return "-"
}

// ConsoleURL links to the resource in the IBM Cloud console.
func (r Resource) ConsoleURL() string {
	switch r.Family {
	case FamilyCompute:
		return fmt.Sprintf("https://cloud.ibm.com/vpc-ext/compute/vs/%s~%s/overview", r.Region, r.ID)
	case FamilyKubernetes:
		return fmt.Sprintf("https://cloud.ibm.com/kubernetes/clusters/%s/overview", r.ID)
	case FamilyOpenShift:
		return fmt.Sprintf("https://cloud.ibm.com/kubernetes/clusters/%s/overview?platformType=openshift", r.ID)
	case FamilyServerless:
		return fmt.Sprintf("https://cloud.ibm.com/codeengine/project/%s/%s/overview", r.Region, r.ID)
	}
	return "https://cloud.ibm.com/resources"
}

// Clone returns a copy whose attribute map is not shared.
func (r Resource) Clone() Resource {
	if r.Attributes != nil {
		attrs := make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			attrs[k] = v
		}
		r.Attributes = attrs
	}
	return r
}

// CloneResources deep copies a resource slice.
func CloneResources(in []Resource) []Resource {
	if in == nil {
		return nil
	}
	out := make([]Resource, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// Field is one labelled value of a resource detail.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// ResourceDetail is a summary plus the provider specific fields loaded on demand.
type ResourceDetail struct {
	Resource `yaml:",inline"`
	CRN       string  `json:"crn,omitempty" yaml:"crn,omitempty"`
	CreatedAt string  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Fields    []Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

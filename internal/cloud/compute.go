package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"golang.org/x/oauth2"
)

const (
	// regionDirectory is the regional endpoint used to enumerate all VPC regions.
	regionDirectory = "us-south"

	pageLimit = 100
)

// ComputeProvider manages VPC virtual server instances.
type ComputeProvider struct {
	rest   *restClient
	groups *ResourceController
}

// NewComputeProvider creates the VPC instance adapter.
func NewComputeProvider(ts oauth2.TokenSource, groups *ResourceController, opts ...Option) *ComputeProvider {
	return &ComputeProvider{
		rest:   newRESTClient(ts, buildOptions(opts), "vpc"),
		groups: groups,
	}
}

func (p *ComputeProvider) Family() Family { return FamilyCompute }

func (p *ComputeProvider) Supports(kind ActionKind) bool {
	switch kind {
	case ActionStart, ActionStop, ActionReboot, ActionLoadDetail:
		return true
	}
	return false
}

func (p *ComputeProvider) ListResourceGroups(ctx context.Context) ([]ResourceGroup, error) {
	return p.groups.ListResourceGroups(ctx)
}

func (p *ComputeProvider) regionURL(region string) string {
	return p.rest.endpoint(fmt.Sprintf("https://%s.iaas.cloud.ibm.com", region))
}

// query returns the version parameters every VPC call requires. The API
// version is yesterday's date.
func (p *ComputeProvider) query() url.Values {
	q := url.Values{}
	q.Set("version", p.rest.now().AddDate(0, 0, -1).Format("2006-01-02"))
	q.Set("generation", "2")
	return q
}

type vpcRegionList struct {
	Regions []struct {
		Name     string `json:"name"`
		Endpoint string `json:"endpoint"`
		Status   string `json:"status"`
	} `json:"regions"`
}

// ListRegions lists VPC regions sorted by name.
func (p *ComputeProvider) ListRegions(ctx context.Context) ([]Region, error) {
	var out vpcRegionList
	err := p.rest.do(ctx, request{
		op:     "list regions",
		method: http.MethodGet,
		url:    p.regionURL(regionDirectory) + "/v1/regions?" + p.query().Encode(),
	}, &out)
	if err != nil {
		return nil, err
	}

	regions := make([]Region, 0, len(out.Regions))
	for _, r := range out.Regions {
		regions = append(regions, Region{
			Name:      r.Name,
			Endpoint:  r.Endpoint,
			Available: r.Status == "available",
		})
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	return regions, nil
}

type vpcReference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type vpcInstance struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        string       `json:"status"`
	CRN           string       `json:"crn"`
	CreatedAt     string       `json:"created_at"`
	Zone          vpcReference `json:"zone"`
	VPC           vpcReference `json:"vpc"`
	Profile       vpcReference `json:"profile"`
	ResourceGroup vpcReference `json:"resource_group"`
	Image         vpcReference `json:"image"`
	Memory        int          `json:"memory"`
	Vcpu          struct {
		Count        int    `json:"count"`
		Architecture string `json:"architecture"`
	} `json:"vcpu"`
	PrimaryNetworkInterface *struct {
		PrimaryIP *struct {
			Address string `json:"address"`
		} `json:"primary_ip"`
	} `json:"primary_network_interface"`
}

type vpcInstanceList struct {
	Instances []vpcInstance `json:"instances"`
	Next      *struct {
		Href string `json:"href"`
	} `json:"next"`
}

func (i vpcInstance) primaryIP() string {
	if i.PrimaryNetworkInterface == nil || i.PrimaryNetworkInterface.PrimaryIP == nil {
		return ""
	}
	return i.PrimaryNetworkInterface.PrimaryIP.Address
}

func (i vpcInstance) toResource(region string) Resource {
	return Resource{
		Family:          FamilyCompute,
		ID:              i.ID,
		Name:            i.Name,
		Status:          MapInstanceStatus(i.Status),
		NativeStatus:    i.Status,
		Region:          region,
		ResourceGroupID: i.ResourceGroup.ID,
		Attributes: map[string]string{
			"zone":       i.Zone.Name,
			"vpc":        i.VPC.Name,
			"profile":    i.Profile.Name,
			"primary_ip": i.primaryIP(),
		},
	}
}

// ListResources lists every instance of region, following pagination.
func (p *ComputeProvider) ListResources(ctx context.Context, region, resourceGroupID string) ([]Resource, error) {
	if region == "" {
		return nil, Errorf(KindInvalidRegion, "list instances", "no region selected")
	}

	var resources []Resource
	start := ""
	for {
		q := p.query()
		q.Set("limit", strconv.Itoa(pageLimit))
		if resourceGroupID != "" {
			q.Set("resource_group.id", resourceGroupID)
		}
		if start != "" {
			q.Set("start", start)
		}

		var page vpcInstanceList
		err := p.rest.do(ctx, request{
			op:       "list instances",
			method:   http.MethodGet,
			url:      p.regionURL(region) + "/v1/instances?" + q.Encode(),
			notFound: KindInvalidRegion,
		}, &page)
		if err != nil {
			return nil, err
		}

		for _, inst := range page.Instances {
			resources = append(resources, inst.toResource(region))
		}

		start = nextStart(page.Next)
		if start == "" {
			break
		}
	}
	return resources, nil
}

// nextStart extracts the pagination token from a next link.
func nextStart(next *struct {
	Href string `json:"href"`
}) string {
	if next == nil || next.Href == "" {
		return ""
	}
	u, err := url.Parse(next.Href)
	if err != nil {
		return ""
	}
	return u.Query().Get("start")
}

// Describe loads one instance.
func (p *ComputeProvider) Describe(ctx context.Context, region, id string) (*ResourceDetail, error) {
	if id == "" {
		return nil, Errorf(KindInvalidRequest, "get instance", "empty instance id")
	}

	var inst vpcInstance
	err := p.rest.do(ctx, request{
		op:     "get instance",
		method: http.MethodGet,
		url:    p.regionURL(region) + "/v1/instances/" + url.PathEscape(id) + "?" + p.query().Encode(),
	}, &inst)
	if err != nil {
		return nil, err
	}

	detail := &ResourceDetail{
		Resource:  inst.toResource(region),
		CRN:       inst.CRN,
		CreatedAt: inst.CreatedAt,
		Fields: []Field{
			{Name: "Zone", Value: inst.Zone.Name},
			{Name: "VPC", Value: fmt.Sprintf("%s (%s)", inst.VPC.Name, inst.VPC.ID)},
			{Name: "Profile", Value: inst.Profile.Name},
			{Name: "vCPU", Value: fmt.Sprintf("%d %s", inst.Vcpu.Count, inst.Vcpu.Architecture)},
			{Name: "Memory", Value: fmt.Sprintf("%d GiB", inst.Memory)},
			{Name: "Image", Value: inst.Image.Name},
			{Name: "Primary IP", Value: inst.primaryIP()},
			{Name: "Resource Group", Value: inst.ResourceGroup.Name},
		},
	}
	return detail, nil
}

// PerformAction submits start, stop or reboot. Load-detail is served by Describe.
func (p *ComputeProvider) PerformAction(ctx context.Context, region, id string, kind ActionKind) error {
	switch kind {
	case ActionLoadDetail:
		_, err := p.Describe(ctx, region, id)
		return err
	case ActionStart, ActionStop, ActionReboot:
	default:
		return Errorf(KindInvalidRequest, "instance action", "unsupported action %q", kind)
	}
	if id == "" {
		return Errorf(KindInvalidRequest, "instance action", "empty instance id")
	}

	op := fmt.Sprintf("%s instance", kind)
	err := p.rest.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		url:    p.regionURL(region) + "/v1/instances/" + url.PathEscape(id) + "/actions?" + p.query().Encode(),
		body:   map[string]string{"type": string(kind)},
	}, nil)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && (ce.StatusCode == http.StatusConflict || ce.StatusCode == http.StatusBadRequest) {
			ce.Kind = KindInvalidStateTransition
		}
		return err
	}
	return nil
}

package cloud

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// DefaultContainersURL is the global IKS/ROKS API endpoint.
const DefaultContainersURL = "https://containers.cloud.ibm.com"

// containerRegions are the regions the container service runs in.
var containerRegions = []string{
	"au-syd", "br-sao", "ca-mon", "ca-tor", "eu-de", "eu-es",
	"eu-gb", "jp-osa", "jp-tok", "us-east", "us-south",
}

// RegionLister is anything that can enumerate regions.
type RegionLister interface {
	ListRegions(ctx context.Context) ([]Region, error)
}

// ClusterProvider manages IKS (kubernetes) or ROKS (openshift) clusters.
// Clusters have no start/stop lifecycle; only load-detail is supported.
type ClusterProvider struct {
	family  Family
	rest    *restClient
	groups  *ResourceController
	regions RegionLister
}

// NewClusterProvider creates a cluster adapter. family must be FamilyKubernetes
// or FamilyOpenShift. regions, when set, is used to discover region availability.
func NewClusterProvider(family Family, ts oauth2.TokenSource, groups *ResourceController, regions RegionLister, opts ...Option) *ClusterProvider {
	return &ClusterProvider{
		family:  family,
		rest:    newRESTClient(ts, buildOptions(opts), string(family)),
		groups:  groups,
		regions: regions,
	}
}

func (p *ClusterProvider) Family() Family { return p.family }

func (p *ClusterProvider) Supports(kind ActionKind) bool { return kind == ActionLoadDetail }

func (p *ClusterProvider) ListResourceGroups(ctx context.Context) ([]ResourceGroup, error) {
	return p.groups.ListResourceGroups(ctx)
}

func (p *ClusterProvider) clusterType() string {
	if p.family == FamilyOpenShift {
		return "openshift"
	}
	return "kubernetes"
}

func staticContainerRegions() []Region {
	regions := make([]Region, 0, len(containerRegions))
	for _, name := range containerRegions {
		regions = append(regions, Region{
			Name:      name,
			Endpoint:  "https://" + name + ".containers.cloud.ibm.com",
			Available: true,
		})
	}
	return regions
}

// ListRegions intersects the VPC region list with the container regions.
// Transient failures of the VPC lookup fall back to the static list; auth
// and permission failures are returned.
func (p *ClusterProvider) ListRegions(ctx context.Context) ([]Region, error) {
	if p.regions == nil {
		return staticContainerRegions(), nil
	}
	vpcRegions, err := p.regions.ListRegions(ctx)
	if err != nil {
		switch KindOf(err) {
		case KindAuth, KindPermission:
			return nil, err
		}
		p.rest.logger.Warn("region discovery failed, using known container regions")
		return staticContainerRegions(), nil
	}

	known := make(map[string]bool, len(containerRegions))
	for _, name := range containerRegions {
		known[name] = true
	}
	var regions []Region
	for _, r := range vpcRegions {
		if known[r.Name] {
			regions = append(regions, Region{
				Name:      r.Name,
				Endpoint:  "https://" + r.Name + ".containers.cloud.ibm.com",
				Available: r.Available,
			})
		}
	}
	if len(regions) == 0 {
		return staticContainerRegions(), nil
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Name < regions[j].Name })
	return regions, nil
}

type cluster struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Region            string   `json:"region"`
	State             string   `json:"state"`
	Status            string   `json:"status"`
	Type              string   `json:"type"`
	ResourceGroup     string   `json:"resourceGroup"`
	ResourceGroupName string   `json:"resourceGroupName"`
	MasterKubeVersion string   `json:"masterKubeVersion"`
	MasterURL         string   `json:"masterURL"`
	CreatedDate       string   `json:"createdDate"`
	CRN               string   `json:"crn"`
	WorkerCount       int      `json:"workerCount"`
	WorkerZones       []string `json:"workerZones"`
	VPCs              []string `json:"vpcs"`
	Ingress           struct {
		Hostname string `json:"hostname"`
	} `json:"ingress"`
}

func (c cluster) toResource(family Family) Resource {
	return Resource{
		Family:          family,
		ID:              c.ID,
		Name:            c.Name,
		Status:          MapClusterState(c.State),
		NativeStatus:    c.State,
		Region:          c.Region,
		ResourceGroupID: c.ResourceGroup,
		Attributes: map[string]string{
			"version": c.MasterKubeVersion,
			"workers": strconv.Itoa(c.WorkerCount),
			"zones":   strings.Join(c.WorkerZones, ","),
			"vpc":     strings.Join(c.VPCs, ","),
		},
	}
}

func (p *ClusterProvider) groupHeader(resourceGroupID string) http.Header {
	h := http.Header{}
	if resourceGroupID != "" {
		h.Set("X-Auth-Resource-Group", resourceGroupID)
	}
	return h
}

// ListResources lists the clusters of this family located in region.
func (p *ClusterProvider) ListResources(ctx context.Context, region, resourceGroupID string) ([]Resource, error) {
	if region == "" {
		return nil, Errorf(KindInvalidRegion, "list clusters", "no region selected")
	}

	var clusters []cluster
	err := p.rest.do(ctx, request{
		op:     "list clusters",
		method: http.MethodGet,
		url:    p.rest.endpoint(DefaultContainersURL) + "/global/v2/vpc/getClusters?provider=vpc-gen2",
		header: p.groupHeader(resourceGroupID),
	}, &clusters)
	if err != nil {
		return nil, err
	}

	var resources []Resource
	for _, c := range clusters {
		if c.Region != region {
			continue
		}
		if c.Type != "" && c.Type != p.clusterType() {
			continue
		}
		if resourceGroupID != "" && c.ResourceGroup != "" && c.ResourceGroup != resourceGroupID {
			continue
		}
		resources = append(resources, c.toResource(p.family))
	}
	return resources, nil
}

// Describe loads one cluster.
func (p *ClusterProvider) Describe(ctx context.Context, region, id string) (*ResourceDetail, error) {
	if id == "" {
		return nil, Errorf(KindInvalidRequest, "get cluster", "empty cluster id")
	}

	var c cluster
	err := p.rest.do(ctx, request{
		op:     "get cluster",
		method: http.MethodGet,
		url:    p.rest.endpoint(DefaultContainersURL) + "/global/v2/getCluster?cluster=" + url.QueryEscape(id),
	}, &c)
	if err != nil {
		return nil, err
	}

	fields := []Field{
		{Name: "Version", Value: c.MasterKubeVersion},
		{Name: "Workers", Value: strconv.Itoa(c.WorkerCount)},
		{Name: "Zones", Value: strings.Join(c.WorkerZones, ", ")},
		{Name: "VPC", Value: strings.Join(c.VPCs, ", ")},
		{Name: "Master URL", Value: c.MasterURL},
		{Name: "Resource Group", Value: c.ResourceGroupName},
	}
	if p.family == FamilyOpenShift {
		fields = append(fields, Field{Name: "Ingress", Value: c.Ingress.Hostname})
	}

	return &ResourceDetail{
		Resource:  c.toResource(p.family),
		CRN:       c.CRN,
		CreatedAt: c.CreatedDate,
		Fields:    fields,
	}, nil
}

// PerformAction only supports load-detail.
func (p *ClusterProvider) PerformAction(ctx context.Context, region, id string, kind ActionKind) error {
	if kind != ActionLoadDetail {
		return Errorf(KindInvalidRequest, "cluster action", "%s is not supported for %s", kind, p.family.Label())
	}
	_, err := p.Describe(ctx, region, id)
	return err
}

package cloud

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// codeEngineRegions are the regions Code Engine is offered in.
var codeEngineRegions = []string{
	"au-syd", "br-sao", "ca-tor", "eu-de", "eu-es", "eu-gb",
	"jp-osa", "jp-tok", "us-east", "us-south",
}

// ServerlessProvider manages Code Engine projects.
type ServerlessProvider struct {
	rest   *restClient
	groups *ResourceController
}

// NewServerlessProvider creates the Code Engine project adapter.
func NewServerlessProvider(ts oauth2.TokenSource, groups *ResourceController, opts ...Option) *ServerlessProvider {
	return &ServerlessProvider{
		rest:   newRESTClient(ts, buildOptions(opts), "codeengine"),
		groups: groups,
	}
}

func (p *ServerlessProvider) Family() Family { return FamilyServerless }

func (p *ServerlessProvider) Supports(kind ActionKind) bool { return kind == ActionLoadDetail }

func (p *ServerlessProvider) ListResourceGroups(ctx context.Context) ([]ResourceGroup, error) {
	return p.groups.ListResourceGroups(ctx)
}

func (p *ServerlessProvider) regionURL(region string) string {
	return p.rest.endpoint(fmt.Sprintf("https://api.%s.codeengine.cloud.ibm.com", region))
}

// ListRegions returns the Code Engine regions. The list is static.
func (p *ServerlessProvider) ListRegions(ctx context.Context) ([]Region, error) {
	regions := make([]Region, 0, len(codeEngineRegions))
	for _, name := range codeEngineRegions {
		regions = append(regions, Region{
			Name:      name,
			Endpoint:  fmt.Sprintf("https://api.%s.codeengine.cloud.ibm.com", name),
			Available: true,
		})
	}
	return regions, nil
}

type project struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Region          string `json:"region"`
	Status          string `json:"status"`
	CRN             string `json:"crn"`
	CreatedAt       string `json:"created_at"`
	ResourceGroupID string `json:"resource_group_id"`
	AccountID       string `json:"account_id"`
}

type projectList struct {
	Projects []project `json:"projects"`
	Next     *struct {
		Start string `json:"start"`
	} `json:"next"`
}

func (pr project) toResource(region string) Resource {
	if pr.Region != "" {
		region = pr.Region
	}
	return Resource{
		Family:          FamilyServerless,
		ID:              pr.ID,
		Name:            pr.Name,
		Status:          MapProjectStatus(pr.Status),
		NativeStatus:    pr.Status,
		Region:          region,
		ResourceGroupID: pr.ResourceGroupID,
		Attributes: map[string]string{
			"created": pr.CreatedAt,
		},
	}
}

// ListResources lists the projects of region.
func (p *ServerlessProvider) ListResources(ctx context.Context, region, resourceGroupID string) ([]Resource, error) {
	if region == "" {
		return nil, Errorf(KindInvalidRegion, "list projects", "no region selected")
	}

	var resources []Resource
	start := ""
	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageLimit))
		if resourceGroupID != "" {
			q.Set("resource_group_id", resourceGroupID)
		}
		if start != "" {
			q.Set("start", start)
		}

		var page projectList
		err := p.rest.do(ctx, request{
			op:       "list projects",
			method:   http.MethodGet,
			url:      p.regionURL(region) + "/v2/projects?" + q.Encode(),
			notFound: KindInvalidRegion,
		}, &page)
		if err != nil {
			return nil, err
		}

		for _, pr := range page.Projects {
			resources = append(resources, pr.toResource(region))
		}
		if page.Next == nil || page.Next.Start == "" {
			break
		}
		start = page.Next.Start
	}
	return resources, nil
}

// projectComponents are the per project collections counted on describe.
var projectComponents = []string{"apps", "jobs", "builds", "secrets"}

func (p *ServerlessProvider) countComponent(ctx context.Context, region, id, component string) (int, error) {
	var out map[string]any
	err := p.rest.do(ctx, request{
		op:     "list " + component,
		method: http.MethodGet,
		url:    p.regionURL(region) + "/v2/projects/" + url.PathEscape(id) + "/" + component + "?limit=" + strconv.Itoa(pageLimit),
	}, &out)
	if err != nil {
		return 0, err
	}
	items, _ := out[component].([]any)
	return len(items), nil
}

// Describe loads one project and counts its apps, jobs, builds and secrets concurrently.
func (p *ServerlessProvider) Describe(ctx context.Context, region, id string) (*ResourceDetail, error) {
	if id == "" {
		return nil, Errorf(KindInvalidRequest, "get project", "empty project id")
	}

	var pr project
	err := p.rest.do(ctx, request{
		op:     "get project",
		method: http.MethodGet,
		url:    p.regionURL(region) + "/v2/projects/" + url.PathEscape(id),
	}, &pr)
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(projectComponents))
	g, gctx := errgroup.WithContext(ctx)
	for i, component := range projectComponents {
		g.Go(func() error {
			n, err := p.countComponent(gctx, region, id, component)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := pr.toResource(region)
	fields := []Field{{Name: "Status", Value: pr.Status}}
	for i, component := range projectComponents {
		res.Attributes[component] = strconv.Itoa(counts[i])
		fields = append(fields, Field{Name: component, Value: strconv.Itoa(counts[i])})
	}

	return &ResourceDetail{
		Resource:  res,
		CRN:       pr.CRN,
		CreatedAt: pr.CreatedAt,
		Fields:    fields,
	}, nil
}

// PerformAction only supports load-detail.
func (p *ServerlessProvider) PerformAction(ctx context.Context, region, id string, kind ActionKind) error {
	if kind != ActionLoadDetail {
		return Errorf(KindInvalidRequest, "project action", "%s is not supported for %s", kind, FamilyServerless.Label())
	}
	_, err := p.Describe(ctx, region, id)
	return err
}

package cloud

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"golang.org/x/oauth2"
)

// DefaultResourceControllerURL is the global resource controller endpoint.
const DefaultResourceControllerURL = "https://resource-controller.cloud.ibm.com"

// ResourceController lists the account's resource groups.
type ResourceController struct {
	rest     *restClient
	accounts AccountResolver
}

// NewResourceController creates a resource group client.
func NewResourceController(ts oauth2.TokenSource, accounts AccountResolver, opts ...Option) *ResourceController {
	return &ResourceController{
		rest:     newRESTClient(ts, buildOptions(opts), "resource-controller"),
		accounts: accounts,
	}
}

type resourceGroupList struct {
	Resources []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		State   string `json:"state"`
		Default bool   `json:"default"`
	} `json:"resources"`
}

// ListResourceGroups returns the account's resource groups sorted by name.
func (c *ResourceController) ListResourceGroups(ctx context.Context) ([]ResourceGroup, error) {
	params := url.Values{}
	if c.accounts != nil {
		account, err := c.accounts.AccountID()
		if err != nil {
			return nil, Classify(err, KindAuth, "list resource groups")
		}
		params.Set("account_id", account)
	}

	var out resourceGroupList
	err := c.rest.do(ctx, request{
		op:     "list resource groups",
		method: http.MethodGet,
		url:    c.rest.endpoint(DefaultResourceControllerURL) + "/v2/resource_groups?" + params.Encode(),
	}, &out)
	if err != nil {
		return nil, err
	}

	groups := make([]ResourceGroup, 0, len(out.Resources))
	for _, rg := range out.Resources {
		groups = append(groups, ResourceGroup{
			ID:      rg.ID,
			Name:    rg.Name,
			State:   rg.State,
			Default: rg.Default,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

package cloud

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider translates generic list/describe/act calls into one family's
// remote API. Implementations never cache: every call reaches the network.
type Provider interface {
	Family() Family

	ListRegions(ctx context.Context) ([]Region, error)
	ListResourceGroups(ctx context.Context) ([]ResourceGroup, error)

	// ListResources lists the family's resources in region. An empty
	// resourceGroupID means every group is in scope.
	ListResources(ctx context.Context, region, resourceGroupID string) ([]Resource, error)
	Describe(ctx context.Context, region, id string) (*ResourceDetail, error)
	PerformAction(ctx context.Context, region, id string, kind ActionKind) error

	// Supports reports whether the family implements kind at all.
	Supports(kind ActionKind) bool
}

// AccountResolver resolves the account the credential belongs to.
type AccountResolver interface {
	AccountID() (string, error)
}

// NewProviders builds one adapter per family sharing a token source.
func NewProviders(ts oauth2.TokenSource, accounts AccountResolver, opts ...Option) map[Family]Provider {
	groups := NewResourceController(ts, accounts, opts...)
	compute := NewComputeProvider(ts, groups, opts...)
	return map[Family]Provider{
		FamilyCompute:    compute,
		FamilyKubernetes: NewClusterProvider(FamilyKubernetes, ts, groups, compute, opts...),
		FamilyOpenShift:  NewClusterProvider(FamilyOpenShift, ts, groups, compute, opts...),
		FamilyServerless: NewServerlessProvider(ts, groups, opts...),
	}
}

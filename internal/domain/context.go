package domain

// ResolutionSource records how the acting tenant was determined for a request.
type ResolutionSource string

const (
	SourceHostHeader   ResolutionSource = "host-header"
	SourceToken        ResolutionSource = "token"
	SourceBothMatching ResolutionSource = "both-matching"
)

// RequestContext carries the resolved tenant and user for one request. It is
// created by the tenant middleware and discarded when the request ends; it is
// never persisted or shared across requests.
type RequestContext struct {
	TenantID string
	Tenant   Tenant
	UserID   string
	Role     Role
	Source   ResolutionSource
}

// Authenticated reports whether the request carries a verified user identity.
func (rc RequestContext) Authenticated() bool {
	return rc.UserID != ""
}

package auth

import "aimarket/internal/models"

// Capability names consumed by the route table and the /v1/me payload.
// Role branching lives in this one table rather than scattered switches.
const (
	CapBrowseMarketplace = "marketplace:browse"
	CapChat              = "chat:use"
	CapPublishListings   = "listings:publish"
	CapManageOwnStock    = "listings:stock"
	CapManageUsers       = "users:manage"
	CapViewAllLogs       = "logs:all"
)

var capabilities = map[string][]string{
	models.RoleCustomer: {CapBrowseMarketplace, CapChat},
	models.RoleStore:    {CapBrowseMarketplace, CapPublishListings, CapManageOwnStock},
	models.RoleAdmin:    {CapBrowseMarketplace, CapManageUsers, CapViewAllLogs},
}

// Capabilities returns the capability set for a role. Unknown roles get none.
func Capabilities(role string) []string {
	caps, ok := capabilities[role]
	if !ok {
		return nil
	}
	out := make([]string, len(caps))
	copy(out, caps)
	return out
}

func HasCapability(role, capability string) bool {
	for _, c := range capabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

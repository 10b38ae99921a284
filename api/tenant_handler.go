package api

import "net/http"

// Tenant is one entry in the tenant directory served by GET /v1/tenants.
type Tenant struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}

// WithTenants sets the static tenant directory.
func WithTenants(tenants []Tenant) Option {
	return func(a *API) {
		a.tenants = tenants
	}
}

func (a *API) listTenants(w http.ResponseWriter, _ *http.Request) {
	tenants := a.tenants
	if tenants == nil {
		tenants = []Tenant{}
	}
	writeJSON(w, http.StatusOK, tenants)
}

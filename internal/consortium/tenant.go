// Package consortium implements tenant-role resolution and the aggregation
// of member-tenant resource state into the shared central-tenant index.
package consortium

import (
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/pkg/config"
)

// TenantProvider resolves consortium membership for a tenant.
type TenantProvider interface {
	// EffectiveTenant returns the tenant whose indexes the given tenant
	// writes to: the central tenant for members, the tenant itself
	// otherwise.
	EffectiveTenant(tenantID string) string

	// CentralTenant returns the consortium's central tenant when tenantID
	// participates in one (as central or member).
	CentralTenant(tenantID string) (string, bool)

	// Role derives the tenant's consortium role.
	Role(tenantID string) model.TenantRole
}

// ConfigTenantProvider is a TenantProvider backed by static configuration.
type ConfigTenantProvider struct {
	centralOf map[string]string
	centrals  map[string]bool
}

// NewConfigTenantProvider builds the lookup tables from configuration.
func NewConfigTenantProvider(cfg config.ConsortiumConfig) *ConfigTenantProvider {
	p := &ConfigTenantProvider{
		centralOf: make(map[string]string),
		centrals:  make(map[string]bool),
	}
	for _, consortium := range cfg.Consortia {
		p.centrals[consortium.CentralTenant] = true
		p.centralOf[consortium.CentralTenant] = consortium.CentralTenant
		for _, member := range consortium.Members {
			p.centralOf[member] = consortium.CentralTenant
		}
	}
	return p
}

func (p *ConfigTenantProvider) EffectiveTenant(tenantID string) string {
	if central, ok := p.centralOf[tenantID]; ok {
		return central
	}
	return tenantID
}

func (p *ConfigTenantProvider) CentralTenant(tenantID string) (string, bool) {
	central, ok := p.centralOf[tenantID]
	return central, ok
}

func (p *ConfigTenantProvider) Role(tenantID string) model.TenantRole {
	central, ok := p.centralOf[tenantID]
	switch {
	case !ok:
		return model.RoleStandalone
	case central == tenantID:
		return model.RoleCentral
	default:
		return model.RoleMember
	}
}

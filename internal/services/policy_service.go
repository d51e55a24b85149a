package services

import (
	"github.com/casbin/casbin/v2"

	"github.com/you/otpsvc/domain"
)

// PolicyServiceImpl manages the RBAC rules guarding the admin surface:
// challenge inspection, forced expiry, and the policy endpoints
// themselves. Every mutation is flushed to the shared adapter so all
// instances enforce the same rules.
type PolicyServiceImpl struct {
	enforcer domain.CasbinEnforcer
}

// NewPolicyService wires the service to a live Casbin enforcer
func NewPolicyService(enforcer *casbin.Enforcer) domain.PolicyService {
	return &PolicyServiceImpl{enforcer: &enforcerAdapter{enforcer: enforcer}}
}

// NewPolicyServiceWithEnforcer accepts the enforcer port directly, used in tests
func NewPolicyServiceWithEnforcer(enforcer domain.CasbinEnforcer) domain.PolicyService {
	return &PolicyServiceImpl{enforcer: enforcer}
}

// AddPolicy implements domain.PolicyService
func (p *PolicyServiceImpl) AddPolicy(role, resource, action string) error {
	_, err := p.enforcer.AddPolicy(role, resource, action)
	return p.flush(err)
}

// RemovePolicy implements domain.PolicyService
func (p *PolicyServiceImpl) RemovePolicy(role, resource, action string) error {
	_, err := p.enforcer.RemovePolicy(role, resource, action)
	return p.flush(err)
}

// CheckPermission implements domain.PolicyService
func (p *PolicyServiceImpl) CheckPermission(role, resource, action string) (bool, error) {
	return p.enforcer.Enforce(role, resource, action)
}

// GetPolicies implements domain.PolicyService
func (p *PolicyServiceImpl) GetPolicies() [][]string {
	policies, _ := p.enforcer.GetPolicy()
	return policies
}

func (p *PolicyServiceImpl) flush(err error) error {
	if err != nil {
		return err
	}
	return p.enforcer.SavePolicy()
}

// enforcerAdapter narrows *casbin.Enforcer to the domain.CasbinEnforcer port
type enforcerAdapter struct {
	enforcer *casbin.Enforcer
}

func (a *enforcerAdapter) AddPolicy(params ...interface{}) (bool, error) {
	return a.enforcer.AddPolicy(params...)
}

func (a *enforcerAdapter) RemovePolicy(params ...interface{}) (bool, error) {
	return a.enforcer.RemovePolicy(params...)
}

func (a *enforcerAdapter) Enforce(rvals ...interface{}) (bool, error) {
	return a.enforcer.Enforce(rvals...)
}

func (a *enforcerAdapter) GetPolicy() ([][]string, error) {
	return a.enforcer.GetPolicy()
}

func (a *enforcerAdapter) SavePolicy() error {
	return a.enforcer.SavePolicy()
}

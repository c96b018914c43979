package agent

import (
	"fmt"
	"net/http"

	"claimflow/internal/domain"
	"claimflow/internal/placeholder"
	"claimflow/internal/port"
)

// credential resolves ${appproperties.<prefix>.<tenant>.<field>}.
func (i *Invoker) credential(prefix, tenantID, field string) string {
	tmpl := fmt.Sprintf("${appproperties.%s.%s.%s}", prefix, tenantID, field)
	return placeholder.Resolve(tmpl, nil, i.props)
}

func (i *Invoker) authorize(httpReq *http.Request, req port.AgentRequest) error {
	switch req.Endpoint.AuthMethod {
	case "", domain.AuthNone:
		return nil
	case domain.AuthBasic:
		user := i.credential(req.Endpoint.ProviderPrefix, req.TenantID, "username")
		pass := i.credential(req.Endpoint.ProviderPrefix, req.TenantID, "password")
		if user == "" {
			return domain.MissingConfig("basic auth username %s.%s.username", req.Endpoint.ProviderPrefix, req.TenantID)
		}
		httpReq.SetBasicAuth(user, pass)
		return nil
	case domain.AuthAPIKey:
		key := i.credential(req.Endpoint.ProviderPrefix, req.TenantID, "apikey")
		if key == "" {
			return domain.MissingConfig("api key %s.%s.apikey", req.Endpoint.ProviderPrefix, req.TenantID)
		}
		httpReq.Header.Set("X-API-Key", key)
		return nil
	default:
		return fmt.Errorf("%w: unknown auth method %q", domain.ErrInvalidInput, req.Endpoint.AuthMethod)
	}
}

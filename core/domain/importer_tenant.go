package domain

// TenantContext identifies the commerce-platform account a request acts
// on. It is passed explicitly into every core operation; outbound calls
// to platform services carry the account as a header and forward the
// bearer credential when one was supplied on the inbound request.
type TenantContext struct {
	Account     string
	BearerToken string
}

func NewTenantContext(account string) TenantContext {
	return TenantContext{Account: account}
}

func (t TenantContext) WithBearer(token string) TenantContext {
	t.BearerToken = token
	return t
}

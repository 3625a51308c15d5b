package tokensdk

import (
	"context"
	"net/http"
	"net/url"
)

// IssueAPIToken mints a token for the caller. The raw Token is shown only
// here.
func (c *Client) IssueAPIToken(ctx context.Context, req APITokenRequest) (*APITokenResponse, error) {
	var out APITokenResponse
	if err := c.do(ctx, http.MethodPost, "/v1/api-tokens", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAPITokens(ctx context.Context) ([]APITokenResponse, error) {
	var out ListAPITokensResponse
	if err := c.do(ctx, http.MethodGet, "/v1/api-tokens", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

func (c *Client) RevokeAPIToken(ctx context.Context, id string) (*RevokeResponse, error) {
	var out RevokeResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/api-tokens/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RotateAPIToken revokes id and returns its successor with a fresh raw
// token. IP rules carry over.
func (c *Client) RotateAPIToken(ctx context.Context, id string) (*APITokenResponse, error) {
	var out APITokenResponse
	path := "/v1/api-tokens/" + url.PathEscape(id) + "/rotate"
	if err := c.do(ctx, http.MethodPost, path, nil, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListIPRules(ctx context.Context, tokenID string) ([]IPRuleResponse, error) {
	var out ListIPRulesResponse
	path := "/v1/api-tokens/" + url.PathEscape(tokenID) + "/ips"
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Rules, nil
}

func (c *Client) AddIPRule(ctx context.Context, tokenID string, req IPRuleRequest) (*IPRuleResponse, error) {
	var out IPRuleResponse
	path := "/v1/api-tokens/" + url.PathEscape(tokenID) + "/ips"
	if err := c.do(ctx, http.MethodPost, path, req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteIPRule(ctx context.Context, tokenID, ruleID string) error {
	path := "/v1/api-tokens/" + url.PathEscape(tokenID) + "/ips/" + url.PathEscape(ruleID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent)
}

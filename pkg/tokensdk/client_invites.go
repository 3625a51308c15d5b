package tokensdk

import (
	"context"
	"net/http"
	"net/url"
)

// IssueInvite creates an invite. The returned Code is shown only here.
func (c *Client) IssueInvite(ctx context.Context, req InviteRequest) (*InviteResponse, error) {
	var out InviteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/invites", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateInvite checks a raw code without consuming it.
func (c *Client) ValidateInvite(ctx context.Context, code string) (*InviteResponse, error) {
	var out InviteResponse
	path := "/v1/invites/validate?code=" + url.QueryEscape(code)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// UseInvite redeems invite id with its raw code.
func (c *Client) UseInvite(ctx context.Context, id, code string) (*InviteResponse, error) {
	var out InviteResponse
	path := "/v1/invites/" + url.PathEscape(id) + "/use"
	if err := c.do(ctx, http.MethodPost, path, InviteUseRequest{Code: code}, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RevokeInvite(ctx context.Context, id string) (*RevokeResponse, error) {
	var out RevokeResponse
	path := "/v1/invites/" + url.PathEscape(id) + "/revoke"
	if err := c.do(ctx, http.MethodPost, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// InviteLogs lists the usage log of an invite. Admins only.
func (c *Client) InviteLogs(ctx context.Context, id string) ([]UsageLogEntry, error) {
	var out UsageLogResponse
	path := "/v1/invites/" + url.PathEscape(id) + "/logs"
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Logs, nil
}

/*
Package tokensdk is a client for the tokens service and the home of its wire
types. The server handlers encode exactly these structs, so a response a
client decodes is the response the server wrote.

Create a Client with a bearer credential. Either an accounts session JWT or
an API token (hxt_...) works:

	c := tokensdk.NewClient("https://tokens.example.com", bearer)

	// Issue an invite for a new coordinator
	inv, err := c.IssueInvite(ctx, tokensdk.InviteRequest{TargetRole: "coordinator"})

	// The raw code is only present on this response
	fmt.Println(inv.Code)

	// Mint an API token for a script, pinned to one address
	tok, err := c.IssueAPIToken(ctx, tokensdk.APITokenRequest{ClientName: "backup"})
	_, err = c.AddIPRule(ctx, tok.ID, tokensdk.IPRuleRequest{IP: "203.0.113.7", Kind: "allow"})

# Errors

Non-2xx responses come back as *APIError carrying the status code and the
{"error","error_description"} body. 429 responses also carry RetryAfter:

	var apiErr *tokensdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == tokensdk.ErrorCodeRateLimited {
		time.Sleep(apiErr.RetryAfter)
	}

# Thread Safety

A Client holds no mutable state after construction and may be shared.
*/
package tokensdk

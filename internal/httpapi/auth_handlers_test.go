package httpapi

import (
	"net/http"
	"testing"

	"unihr.org/internal/identity"
)

func TestLoginEmployeeWithMarkerIdentifier(t *testing.T) {
	c := newTestAPI(t)
	c.seedOrganization("org-state", "ST-2024")
	c.seedEmployee("org-state", "EMP100", "Jordan Reyes")

	resp := c.post("/v1/auth/login", map[string]any{
		"identifier": "EMP100@ST-2024_EMPLOYEE_LOGIN_MARKER.com",
		"secret":     "anything",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Success    bool                `json:"success"`
		Token      string              `json:"token"`
		Descriptor identity.Descriptor `json:"descriptor"`
	}
	decodeBody(t, resp, &out)
	if !out.Success || out.Token == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.Descriptor.Kind != identity.KindEmployee || out.Descriptor.OrganizationID != "org-state" {
		t.Fatalf("unexpected descriptor: %+v", out.Descriptor)
	}
}

func TestLoginEmployeeTaggedRequest(t *testing.T) {
	c := newTestAPI(t)
	c.seedOrganization("org-state", "ST-2024")
	c.seedEmployee("org-state", "EMP100", "Jordan Reyes")

	token := c.login(map[string]any{
		"employee": map[string]any{
			"employee_id":     "EMP100",
			"organization_id": "ST-2024",
		},
		"secret": "anything",
	})
	if token == "" {
		t.Fatalf("expected a token")
	}
}

func TestLoginFailureEnvelope(t *testing.T) {
	c := newTestAPI(t)
	c.seedOrganization("org-state", "ST-2024")

	resp := c.post("/v1/auth/login", map[string]any{
		"identifier": "EMP404@ST-2024_EMPLOYEE_LOGIN_MARKER.com",
		"secret":     "anything",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out loginErrorResponse
	decodeBody(t, resp, &out)
	if out.Success {
		t.Fatalf("failure payload must carry success=false")
	}
	if out.ErrorKind != "employee_not_found" {
		t.Fatalf("error_kind = %q", out.ErrorKind)
	}
	if out.Message == "" {
		t.Fatalf("message must be populated")
	}
}

func TestLoginPendingApproval(t *testing.T) {
	c := newTestAPI(t)
	c.seedOrganization("org-state", "ST-2024")
	c.seedHRUser("org-state", "dana@university.edu", "hr-secret", identity.KindHRPersonnel, identity.ApprovalPending)

	resp := c.post("/v1/auth/login", map[string]any{
		"identifier": "dana@university.edu",
		"secret":     "hr-secret",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out loginErrorResponse
	decodeBody(t, resp, &out)
	if out.ErrorKind != "pending_approval" {
		t.Fatalf("error_kind = %q", out.ErrorKind)
	}
}

func TestLoginRejectsAmbiguousBody(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/auth/login", map[string]any{
		"identifier": "dana@university.edu",
		"hr":         map[string]any{"email": "dana@university.edu"},
		"secret":     "x",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestAPI(t)
	c.seedOrganization("org-state", "ST-2024")
	c.seedHRUser("org-state", "dana@university.edu", "hr-secret", identity.KindHRHead, identity.ApprovalApproved)

	token := c.login(map[string]any{
		"identifier": "dana@university.edu",
		"secret":     "hr-secret",
	})

	resp := c.get("/v1/auth/session", bearerHeaders(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d", resp.StatusCode)
	}
	var sessionResp struct {
		Active     bool                `json:"active"`
		Descriptor identity.Descriptor `json:"descriptor"`
	}
	decodeBody(t, resp, &sessionResp)
	if !sessionResp.Active || sessionResp.Descriptor.Kind != identity.KindHRHead {
		t.Fatalf("unexpected session: %+v", sessionResp)
	}

	resp = c.post("/v1/auth/refresh", nil, bearerHeaders(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	var refreshResp struct {
		Active bool `json:"active"`
	}
	decodeBody(t, resp, &refreshResp)
	if !refreshResp.Active {
		t.Fatalf("refresh should report an active subject")
	}

	resp = c.post("/v1/auth/logout", nil, bearerHeaders(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp = c.get("/v1/auth/session", bearerHeaders(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("session after logout = %d", resp.StatusCode)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	c := newTestAPI(t)
	c.seedOrganization("org-state", "ST-2024")
	c.seedEmployee("org-state", "EMP100", "Jordan Reyes")
	token := c.login(map[string]any{
		"identifier": "EMP100@ST-2024_EMPLOYEE_LOGIN_MARKER.com",
		"secret":     "anything",
	})
	resp := c.post("/v1/auth/logout", nil, bearerHeaders(token))
	resp.Body.Close()

	resp = c.post("/v1/auth/refresh", nil, bearerHeaders(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d", resp.StatusCode)
	}
	var out struct {
		Active bool `json:"active"`
	}
	decodeBody(t, resp, &out)
	if out.Active {
		t.Fatalf("refresh after logout must report no active subject")
	}
}

func TestSessionWithoutToken(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/v1/auth/session", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

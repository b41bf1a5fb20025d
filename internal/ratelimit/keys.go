package ratelimit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/eduflow/eduflow-backend/pkg/tenant"
)

// ByIPAndEmail keys login attempts on client address plus the submitted
// email, so one address cannot exhaust another user's budget and one account
// cannot be brute-forced from many addresses at full speed each.
//
// The body is peeked and restored for the handler. Unparseable bodies fall
// back to the IP key.
func ByIPAndEmail(r *http.Request) string {
	ip := ByIP(r)

	if r.Body == nil {
		return ip
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return ip
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Email == "" {
		return ip
	}
	return ip + ":" + strings.ToLower(payload.Email)
}

// ByTenantAndUser keys on the acting identity within a tenant. Used for
// heavyweight operations like imports and exports.
func ByTenantAndUser(r *http.Request) string {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		return ByIP(r)
	}
	userID, err := tenant.UserID(r.Context())
	if err != nil {
		return tenantID
	}
	return tenantID + ":" + userID
}

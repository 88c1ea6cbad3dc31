// Package gateway provides the downstream API gateway client and the path
// policy applied to every call the assistant makes on a user's behalf.
package gateway

import (
	"errors"
	"strings"
)

// Sentinel errors for policy rejections. The dispatcher converts these into
// tool results so the model can explain the refusal instead of crashing.
var (
	// ErrPathNotAllowed indicates the requested path is outside the allow-list.
	ErrPathNotAllowed = errors.New("path is not on the gateway allow-list")

	// ErrWriteNotAllowed indicates the call mutates data while the assistant
	// is configured read-only.
	ErrWriteNotAllowed = errors.New("write actions are disabled for the assistant")
)

// allowedPrefixes is the static set of downstream API roots the assistant may
// reach through the gateway. Anything else is rejected before a request is built.
var allowedPrefixes = []string{
	"/api/auth",
	"/api/candidates",
	"/api/customers",
	"/api/dashboard",
	"/api/departments",
	"/api/employees",
	"/api/interviews",
	"/api/products",
	"/api/quotations",
	"/api/reports",
	"/api/users",
}

// readSuffixes mark POST endpoints that follow the gateway's listing
// convention and therefore do not mutate state.
var readSuffixes = []string{"/get", "/list", "/search"}

// safePostActions are POST paths known not to mutate business data.
var safePostActions = []string{"/login", "/logout", "/dashboard", "/search"}

// Policy decides which downstream calls the assistant may issue.
type Policy struct {
	AllowWrites bool
}

// NewPolicy creates a policy with the given write permission.
func NewPolicy(allowWrites bool) *Policy {
	return &Policy{AllowWrites: allowWrites}
}

// IsAllowed reports whether path falls under one of the allowed API roots.
func (p *Policy) IsAllowed(path string) bool {
	path = normalizePath(path)
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	for _, prefix := range allowedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// IsWriteOperation classifies a call as mutating. GET/HEAD/OPTIONS are always
// reads; POST is a read only when it follows the listing convention or targets
// a known-safe action.
func (p *Policy) IsWriteOperation(method, path string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return false
	case "POST":
		path = strings.TrimSuffix(normalizePath(path), "/")
		for _, suffix := range readSuffixes {
			if strings.HasSuffix(path, suffix) {
				return false
			}
		}
		for _, action := range safePostActions {
			if strings.HasSuffix(path, action) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Authorize runs both checks and returns the matching sentinel error on
// rejection, distinguishing "path not allowed" from "write actions disabled".
func (p *Policy) Authorize(method, path string) error {
	if !p.IsAllowed(path) {
		return ErrPathNotAllowed
	}
	if !p.AllowWrites && p.IsWriteOperation(method, path) {
		return ErrWriteNotAllowed
	}
	return nil
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return path
}

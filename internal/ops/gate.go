package ops

// Caller is the identity attached to a request: the subject id issued by
// the identity provider plus its named boolean claims. It is built once by
// the HTTP layer and passed to every operation as an immutable value.
type Caller struct {
	ID     string
	Claims map[string]bool
}

const (
	// ClaimAdmin marks workspace administrators, granted on first sign-up
	// with the configured admin account and via nothing else.
	ClaimAdmin = "admin"
	// ClaimInstitution marks callers acting for an approved institution.
	ClaimInstitution = "institution"
)

// Authorize gates an operation on caller identity and the two independent
// elevated-claim flags. Identity presence is checked first, regardless of
// flag values. Flags are fixed per operation and never derived from the
// envelope.
func Authorize(caller *Caller, requireAdmin, requireInstitution bool) error {
	if caller == nil || caller.ID == "" {
		return failUnauthenticated("you must be logged in to use this feature")
	}
	if requireAdmin && !caller.Claims[ClaimAdmin] {
		return failPermissionDenied("you must be an administrator to use this functionality")
	}
	if requireInstitution && !caller.Claims[ClaimInstitution] {
		return failPermissionDenied("you must be authorized by an approved institution to use this feature")
	}
	return nil
}

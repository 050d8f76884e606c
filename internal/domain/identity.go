package domain

// ResolveUserKey derives the stable key that namespaces all persisted attempt
// state for a user: ID when present, else Email, else Name. An empty return
// means no usable identity; callers treat that as "not logged in".
func ResolveUserKey(identity UserIdentity) string {
	switch {
	case identity.ID != "":
		return identity.ID
	case identity.Email != "":
		return identity.Email
	default:
		return identity.Name
	}
}

package persistence

import "strings"

// Identity is who the cart belongs to. A blank UserID means anonymous.
type Identity struct {
	UserID string
}

func Anonymous() Identity {
	return Identity{}
}

func User(id string) Identity {
	return Identity{UserID: strings.TrimSpace(id)}
}

func (i Identity) IsAuthenticated() bool {
	return strings.TrimSpace(i.UserID) != ""
}

// StorageKey maps an identity to `<namespace>-user-<id>` or `<namespace>-anonymous`.
func StorageKey(namespace string, id Identity) string {
	if id.IsAuthenticated() {
		return namespace + "-user-" + strings.TrimSpace(id.UserID)
	}
	return namespace + "-anonymous"
}

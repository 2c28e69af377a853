package redis

import "strings"

const defaultNamespace = "sf"

// keyspace prefixes every key this service writes. The empty keyspace uses "sf".
type keyspace string

func (k keyspace) key(kind string, parts ...string) string {
	ns := strings.TrimSpace(string(k))
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

// SnapshotKey places a cart storage key under the device scope that owns it.
func (c *Client) SnapshotKey(scope, storageKey string) string {
	return c.keys.key("cart", scope, storageKey)
}

// NoticeKey holds the pending attribution notice for a device scope.
func (c *Client) NoticeKey(scope string) string {
	return c.keys.key("notice", scope)
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return c.keys.key("idem", scope, id)
}

func (c *Client) RateLimitKey(policy, caller string) string {
	return c.keys.key("rl", policy, caller)
}

func (c *Client) LockKey(name string) string {
	return c.keys.key("lock", name)
}

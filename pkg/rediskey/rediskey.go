package rediskey

import "fmt"

// Cache key namespaces (global convention across services)
const (
	HandlePrefix = "bundlesync:handle"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildHandleKey returns "bundlesync:handle:{productID}"
func BuildHandleKey(productID string) string {
	return NamespaceKey(HandlePrefix, productID)
}

package permissions

import "strings"

// Wildcard is the stored action value that matches any requested action.
const Wildcard = "*"

// platformPrefixes is the fixed allowlist separating platform-level
// permission names from tenant-level ones. Classification is purely lexical;
// nothing about it is persisted or configurable.
var platformPrefixes = []string{
	"platform:",
	"system:",
	"tenants:",
}

// IsPlatformPermission reports whether the permission name is platform-level.
// Everything outside the prefix allowlist is tenant-level.
func IsPlatformPermission(name string) bool {
	for _, prefix := range platformPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// SplitName breaks a canonical resource:action permission name into its
// parts. Names without a separator, or with an empty part, are malformed.
func SplitName(name string) (resource, action string, ok bool) {
	resource, action, ok = strings.Cut(name, ":")
	if !ok || resource == "" || action == "" {
		return "", "", false
	}
	return resource, action, true
}

// JoinName renders a (resource, action) pair in canonical wire form.
func JoinName(resource, action string) string {
	return resource + ":" + action
}

//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"
	"os/user"
)

// DetectSource builds a check-in source such as "checkin:o.shokin@laptop"
// from the current user and host, for the audit trail.
func DetectSource(prefix string) (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}

	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}

	return fmt.Sprintf("%s:%s@%s", prefix, currentUser.Username, hostname), nil
}

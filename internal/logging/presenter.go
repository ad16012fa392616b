// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
)

// PresentError formats a connection error for user display. DSNs and secrets
// in err are masked; an empty connection drops the prefix.
func PresentError(connection, action string, err error) string {
	if err == nil {
		return ""
	}
	if connection == "" {
		return fmt.Sprintf("%s: %s", action, Mask(err.Error()))
	}
	return fmt.Sprintf("connection %q: %s: %s", connection, action, Mask(err.Error()))
}

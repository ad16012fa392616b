// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCErrorType represents the category of gRPC error
type GRPCErrorType int

const (
	GRPCErrorUnknown GRPCErrorType = iota
	GRPCErrorNetwork
	GRPCErrorAuth
	GRPCErrorTimeout
	GRPCErrorInternal
	GRPCErrorUnavailable
)

// ClassifyError categorizes an error, preferring its gRPC status code over message text.
func ClassifyError(err error) GRPCErrorType {
	if err == nil {
		return GRPCErrorUnknown
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable:
			return GRPCErrorUnavailable
		case codes.DeadlineExceeded:
			return GRPCErrorTimeout
		case codes.Unauthenticated, codes.PermissionDenied:
			return GRPCErrorAuth
		case codes.Internal:
			return GRPCErrorInternal
		}
	}
	return ParseGRPCError(err.Error())
}

// ParseGRPCError categorizes a gRPC error message
func ParseGRPCError(errMsg string) GRPCErrorType {
	lower := strings.ToLower(errMsg)

	// Check for specific error patterns
	if strings.Contains(lower, "rst_stream") || strings.Contains(lower, "connection reset") {
		return GRPCErrorNetwork
	}
	if strings.Contains(lower, "internal_error") {
		return GRPCErrorInternal
	}
	if strings.Contains(lower, "unavailable") || strings.Contains(lower, "service unavailable") {
		return GRPCErrorUnavailable
	}
	if strings.Contains(lower, "deadline") || strings.Contains(lower, "timeout") {
		return GRPCErrorTimeout
	}
	if strings.Contains(lower, "unauthenticated") || strings.Contains(lower, "unauthorized") {
		return GRPCErrorAuth
	}

	return GRPCErrorUnknown
}

// FormatStreamError formats a gRPC stream error in a user-friendly way
func FormatStreamError(err error) string {
	errType := ClassifyError(err)
	errMsg := ""
	if err != nil {
		errMsg = Mask(err.Error())
	}

	var builder strings.Builder

	// Title
	builder.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint("Connection Lost"))
	builder.WriteString("\n\n")

	// User-friendly description
	switch errType {
	case GRPCErrorNetwork:
		builder.WriteString("The connection to the compiler service was interrupted unexpectedly.\n")
		builder.WriteString("This usually happens when:\n")
		builder.WriteString("  • Your internet connection was disrupted\n")
		builder.WriteString("  • The network path to the service was interrupted\n")
		builder.WriteString("  • A firewall or proxy closed the connection\n")

	case GRPCErrorInternal:
		builder.WriteString("An internal error occurred on the compiler service.\n")
		builder.WriteString("This could mean:\n")
		builder.WriteString("  • The service encountered an unexpected issue\n")
		builder.WriteString("  • The service is being updated or restarted\n")
		builder.WriteString("  • A compiler fault was reported as UNKNOWN\n")

	case GRPCErrorUnavailable:
		builder.WriteString("The compiler service is currently unavailable.\n")
		builder.WriteString("Possible reasons:\n")
		builder.WriteString("  • compilerd serve is not running at the configured address\n")
		builder.WriteString("  • The service is temporarily overloaded\n")
		builder.WriteString("  • There's a service outage\n")

	case GRPCErrorTimeout:
		builder.WriteString("The connection to the compiler service timed out.\n")
		builder.WriteString("This could be due to:\n")
		builder.WriteString("  • Slow or unstable internet connection\n")
		builder.WriteString("  • The service taking too long to respond\n")
		builder.WriteString("  • Network latency issues\n")

	case GRPCErrorAuth:
		builder.WriteString("The compiler service rejected the connection.\n")
		builder.WriteString("To fix this:\n")
		builder.WriteString("  • Check client.insecure and the server's TLS settings\n")
		builder.WriteString("  • Check the certificate presented by the server\n")

	default:
		builder.WriteString("The compile session was interrupted.\n")
		builder.WriteString("This could mean:\n")
		builder.WriteString("  • Network connection dropped\n")
		builder.WriteString("  • Service is restarting or under maintenance\n")
		builder.WriteString("  • The server shut down while the session was open\n")
	}

	builder.WriteString("\n")

	// Action to take
	if errType == GRPCErrorAuth {
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Please fix the TLS settings and try again"))
	} else {
		builder.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ Please try running 'compilerd compile' again"))
	}

	builder.WriteString("\n")

	// Technical details (optional, for debugging)
	if strings.TrimSpace(errMsg) != "" {
		builder.WriteString("\n")
		builder.WriteString(pterm.NewStyle(pterm.FgGray).Sprint("Technical details: " + errMsg))
	}

	return builder.String()
}

// PresentStreamError displays a formatted stream error
func PresentStreamError(err error) {
	fmt.Println()
	fmt.Println(FormatStreamError(err))
	fmt.Println()
}

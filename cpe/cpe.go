// Package cpe renders and splits CPE 2.3 formatted strings.
package cpe

import (
	"strings"
)

const (
	prefix   = "cpe:2.3:a:"
	wildcard = "*"

	// fields after vendor:product:version in a 13-field CPE 2.3 URI
	trailingFields = 7
)

// Format renders vendor, product and version as a CPE 2.3 application URI,
//
//	cpe:2.3:a:django:django:4.2:*:*:*:*:*:*:*
//
// An empty version yields the wildcard form
//
//	cpe:2.3:a:django:django:*:*:*:*:*:*:*:*:*
func Format(vendor, product, version string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(vendor)
	sb.WriteByte(':')
	sb.WriteString(product)
	sb.WriteByte(':')
	if version != "" {
		sb.WriteString(version)
		sb.WriteString(strings.Repeat(":"+wildcard, trailingFields))
		return sb.String()
	}
	sb.WriteString(wildcard)
	sb.WriteString(strings.Repeat(":"+wildcard, trailingFields+1))
	return sb.String()
}

// Parse extracts vendor, product and version from a CPE 2.3 URI such as
// "cpe:2.3:a:microsoft:edge:124.0.1:*:*:*:*:*:*:*". Missing components are
// returned empty; a "*" or "-" version is returned as is.
func Parse(uri string) (vendor, product, version string) {
	parts := strings.Split(uri, ":")
	if len(parts) > 3 {
		vendor = parts[3]
	}
	if len(parts) > 4 {
		product = parts[4]
	}
	if len(parts) > 5 {
		version = parts[5]
	}
	return vendor, product, version
}

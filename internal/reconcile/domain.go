package reconcile

import (
	"strings"
)

// DeriveDomain computes the matching key for a fact. The primary key is
// the sender address fragment between "@" and the first following ".".
// When the From header yields nothing, the company name is lowercased,
// stripped of whitespace and suffixed with ".com".
func DeriveDomain(from, company string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 {
		rest := from[at+1:]
		// The header may wrap the address in angle brackets.
		rest = strings.TrimRight(rest, ">")
		if dot := strings.Index(rest, "."); dot > 0 {
			return strings.ToLower(rest[:dot])
		}
	}
	if company == "" {
		return ""
	}
	collapsed := strings.Join(strings.Fields(company), "")
	return strings.ToLower(collapsed) + ".com"
}

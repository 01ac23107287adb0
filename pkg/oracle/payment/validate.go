package payment

import (
	"fmt"
	"regexp"

	"github.com/verisage/oracle/pkg/oracle/types"
)

const (
	factMinLen = 10
	factMaxLen = 256

	socialPostMinLen = 28
	socialPostMaxLen = 200
)

var (
	factQueryPattern  = regexp.MustCompile(`^[a-zA-Z0-9\s.,?!\-'"":;()/@#$%&+=]+$`)
	socialPostPattern = regexp.MustCompile(`^https?://(twitter\.com|x\.com)/[A-Za-z0-9_]+/status/[0-9]+.*$`)
)

// ValidateInput checks shape, length and character set for a query
// before any payment is looked at.
func ValidateInput(kind types.JobKind, input string) error {
	switch kind {
	case types.KindFact:
		if len(input) < factMinLen || len(input) > factMaxLen {
			return &ValidationError{
				Reason: fmt.Sprintf("query must be %d-%d characters, got %d", factMinLen, factMaxLen, len(input)),
			}
		}
		if !factQueryPattern.MatchString(input) {
			return &ValidationError{Reason: "query contains disallowed characters"}
		}
	case types.KindSocialPost:
		if len(input) < socialPostMinLen || len(input) > socialPostMaxLen {
			return &ValidationError{
				Reason: fmt.Sprintf("tweet URL must be %d-%d characters, got %d", socialPostMinLen, socialPostMaxLen, len(input)),
			}
		}
		if !socialPostPattern.MatchString(input) {
			return &ValidationError{Reason: "tweet URL must be a twitter.com or x.com status link"}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown query kind %q", kind)}
	}
	return nil
}

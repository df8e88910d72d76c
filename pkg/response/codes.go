package response

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// maxSummarized is the number of defects detailed in a summary.
const maxSummarized = 3

// StatusCode maps a processing status to its ISO 20022 group status.
func StatusCode(s message.Status) string {
	switch s {
	case message.StatusSuccess:
		return "ACCP"
	case message.StatusWarning:
		return "ACSP"
	case message.StatusError, message.StatusValidationFailed:
		return "RJCT"
	default:
		return "PDNG"
	}
}

// ReasonCode derives the status reason from the first defect, or "" when
// there is none.
func ReasonCode(errs []message.ValidationError) string {
	if len(errs) == 0 {
		return ""
	}
	switch errs[0].Kind {
	case message.KindStructural, message.KindSchemaViolation:
		return "DS02"
	case message.KindBusinessRule:
		return "RR04"
	case message.KindFormat:
		return "FF01"
	case message.KindMissingField:
		return "AM05"
	case message.KindInvalidValue:
		return "RF01"
	default:
		return "MS03"
	}
}

// Summary renders a human readable digest of errs, e.g.
// "Validation errors found: 2 errors. AM05: ... . RR04: ...".
func Summary(errs []message.ValidationError) string {
	if len(errs) == 0 {
		return "No errors found"
	}

	var sb strings.Builder
	noun := "error"
	if len(errs) > 1 {
		noun = "errors"
	}
	fmt.Fprintf(&sb, "Validation errors found: %d %s", len(errs), noun)

	n := min(len(errs), maxSummarized)
	for _, e := range errs[:n] {
		fmt.Fprintf(&sb, ". %s: %s", e.Code, e.Message)
	}
	if rest := len(errs) - n; rest > 0 {
		fmt.Fprintf(&sb, " and %d more", rest)
	}
	return sb.String()
}

// NewResponseID returns "SIM" followed by 12 uppercase hex characters.
func NewResponseID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SIM" + strings.ToUpper(hex[:12])
}

package processor

import (
	"time"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// Aggregate folds the defects of both validators into a result. Structural
// defects come first and each list keeps its order. The status is
// StatusSuccess when there are no defects and StatusError otherwise;
// warnings never affect it.
func Aggregate(mc *message.Context, structural, business []message.ValidationError, warnings []string, elapsed time.Duration) *message.ProcessingResult {
	errs := make([]message.ValidationError, 0, len(structural)+len(business))
	errs = append(errs, structural...)
	errs = append(errs, business...)

	result := &message.ProcessingResult{
		Status:         message.StatusSuccess,
		Errors:         errs,
		Warnings:       append([]string(nil), warnings...),
		ProcessingTime: elapsed,
	}
	if len(errs) > 0 {
		result.Status = message.StatusError
	}
	if mc != nil {
		result.MessageID = mc.MessageID
		result.MessageType = mc.MessageType
	}
	return result
}

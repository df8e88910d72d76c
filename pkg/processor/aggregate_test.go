package processor

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

func TestAggregate_Empty(t *testing.T) {
	mc := message.NewContext(nil, nil)
	mc.MessageID = "MSG-1"
	mc.MessageType = "pacs.008.001.08"

	r := Aggregate(mc, nil, nil, []string{"duplicate message id MSG-1"}, 5*time.Millisecond)
	assert.Equal(t, message.StatusSuccess, r.Status)
	assert.Empty(t, r.Errors)
	assert.Equal(t, "MSG-1", r.MessageID)
	assert.Equal(t, "pacs.008.001.08", r.MessageType)
	assert.Equal(t, []string{"duplicate message id MSG-1"}, r.Warnings)
	assert.Equal(t, 5*time.Millisecond, r.ProcessingTime)
}

func TestAggregate_KeepsOrder(t *testing.T) {
	structural := []message.ValidationError{
		message.SchemaViolation("s1", "/"),
		message.SchemaViolation("s2", "/"),
	}
	business := []message.ValidationError{
		message.BusinessRuleError("B1", "b1", "", nil),
	}

	r := Aggregate(nil, structural, business, nil, 0)
	assert.Equal(t, message.StatusError, r.Status)
	assert.Equal(t, []string{"s1", "s2", "b1"}, []string{r.Errors[0].Message, r.Errors[1].Message, r.Errors[2].Message})
	assert.Empty(t, r.MessageID)
}

func TestAggregate_StatusIffNoErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	kinds := []message.ErrorKind{
		message.KindStructural, message.KindBusinessRule, message.KindFormat,
		message.KindMissingField, message.KindInvalidValue, message.KindSchemaViolation,
	}
	gen := func() []message.ValidationError {
		n := rng.Intn(4)
		if n == 0 {
			return nil
		}
		out := make([]message.ValidationError, n)
		for i := range out {
			out[i] = message.ValidationError{Kind: kinds[rng.Intn(len(kinds))], Code: fmt.Sprintf("C%d", i)}
		}
		return out
	}

	for i := 0; i < 200; i++ {
		structural, business := gen(), gen()
		warnings := []string(nil)
		if rng.Intn(2) == 0 {
			warnings = []string{"w"}
		}

		r := Aggregate(nil, structural, business, warnings, 0)
		assert.Len(t, r.Errors, len(structural)+len(business))
		if len(structural)+len(business) == 0 {
			assert.Equal(t, message.StatusSuccess, r.Status)
		} else {
			assert.Equal(t, message.StatusError, r.Status)
		}
	}
}

func TestAggregate_DoesNotAliasInputs(t *testing.T) {
	warnings := []string{"a"}
	structural := make([]message.ValidationError, 1, 4)
	structural[0] = message.SchemaViolation("s", "/")

	r := Aggregate(nil, structural, []message.ValidationError{message.BusinessRuleError("B", "b", "", nil)}, warnings, 0)
	warnings[0] = "changed"
	assert.Equal(t, "a", r.Warnings[0])
	assert.Len(t, structural, 1)
}

package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		messageType string
		want        Family
	}{
		{"pain.001.001.03", FamilyPain001},
		{"pain.001.001.09", FamilyPain001},
		{"pain.002.001.10", FamilyPain002},
		{"pacs.002.001.10", FamilyPacs002},
		{"pacs.004.001.09", FamilyPacs004},
		{"pacs.008.001.08", FamilyPacs008},
		{"camt.053.001.08", FamilyCamt053},
		{"admi.002.001.01", FamilyAdmi002},
		{"pacs.008", FamilyPacs008},
		{"camt.056.001.08", FamilyUnknown},
		{"", FamilyUnknown},
		{UnknownType, FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.messageType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.messageType))
		})
	}
}

func TestFamilies(t *testing.T) {
	fams := Families()
	require.Len(t, fams, 7)
	assert.Equal(t, "pain.001", fams[0].Prefix)

	// callers get a copy
	fams[0].Prefix = "changed"
	assert.Equal(t, "pain.001", Families()[0].Prefix)

	for _, info := range Families() {
		assert.True(t, info.Family.Known())
		assert.Equal(t, info.Family, FamilyForElement(info.Element))
		assert.Equal(t, info.Prefix, info.Family.Prefix())
	}

	assert.Equal(t, FamilyUnknown, FamilyForElement("FIToFIPmtCxlReq"))
	assert.Equal(t, UnknownType, FamilyUnknown.Prefix())
	assert.False(t, FamilyUnknown.Known())
}

func TestNewContext(t *testing.T) {
	mc := NewContext([]byte("<Document/>"), nil)
	assert.Equal(t, UnknownType, mc.MessageType)
	assert.Equal(t, FamilyUnknown, mc.Family())
	assert.NotNil(t, mc.Properties)
	assert.NotNil(t, mc.Namespaces)

	mc.MessageType = "pacs.008.001.08"
	assert.Equal(t, FamilyPacs008, mc.Family())

	mc.Properties[PropEndToEndID] = "E2E-1"
	mc.Properties[PropControlSum] = 12.5
	assert.Equal(t, "E2E-1", mc.Property(PropEndToEndID))
	assert.Empty(t, mc.Property(PropControlSum))
	assert.Empty(t, (&Context{}).Property(PropEndToEndID))
}

func TestStatus_Text(t *testing.T) {
	for _, s := range []Status{StatusSuccess, StatusWarning, StatusError, StatusValidationFailed} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("MAYBE")))
	assert.Equal(t, "Status(42)", Status(42).String())
}

func TestErrorKind_Text(t *testing.T) {
	var k ErrorKind
	require.NoError(t, k.UnmarshalText([]byte("MISSING_FIELD")))
	assert.Equal(t, KindMissingField, k)
	assert.Error(t, k.UnmarshalText([]byte("missing_field")))
	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}

func TestValidationError_JSON(t *testing.T) {
	e := InvalidValueError("Ccy", "SEK", "EUR,USD")
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "INVALID_VALUE",
		"code": "INVALID_VALUE",
		"message": "Invalid value for field 'Ccy': SEK",
		"field": "Ccy",
		"actualValue": "SEK",
		"expectedValue": "EUR,USD"
	}`, string(data))

	var back ValidationError
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindInvalidValue, back.Kind)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  ValidationError
		kind ErrorKind
		code string
	}{
		{"structural", StructuralError(CodeValidationError, "no schema", "/"), KindStructural, CodeValidationError},
		{"schema", SchemaViolation("unexpected element", "/Document/X"), KindSchemaViolation, CodeSchemaViolation},
		{"business", BusinessRuleError("INVALID_AMOUNT_VALUE", "negative", "Amt", "-1"), KindBusinessRule, "INVALID_AMOUNT_VALUE"},
		{"format", FormatError("INVALID_BIC_FORMAT", "bad bic", "BICFI", "X"), KindFormat, "INVALID_BIC_FORMAT"},
		{"missing", MissingFieldError("MsgId", "/Document/GrpHdr"), KindMissingField, CodeMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.NotEmpty(t, tt.err.Message)
		})
	}

	assert.Equal(t, "MISSING_FIELD [MISSING_FIELD] MsgId: Required field 'MsgId' is missing",
		MissingFieldError("MsgId", "").String())
	assert.Equal(t, "SCHEMA_VIOLATION [SCHEMA_VIOLATION] oops", SchemaViolation("oops", "/").String())
}

func TestProcessingResult(t *testing.T) {
	r := &ProcessingResult{Status: StatusSuccess}
	assert.True(t, r.Successful())
	assert.False(t, r.HasErrors())

	r = &ProcessingResult{Status: StatusError, Errors: []ValidationError{SchemaViolation("x", "/")}}
	assert.False(t, r.Successful())
	assert.True(t, r.HasErrors())
}

package message

import "fmt"

// ErrorKind classifies a validation defect.
type ErrorKind int

const (
	KindStructural ErrorKind = iota
	KindBusinessRule
	KindFormat
	KindMissingField
	KindInvalidValue
	KindSchemaViolation
)

var kindNames = map[ErrorKind]string{
	KindStructural:      "STRUCTURAL",
	KindBusinessRule:    "BUSINESS_RULE",
	KindFormat:          "FORMAT",
	KindMissingField:    "MISSING_FIELD",
	KindInvalidValue:    "INVALID_VALUE",
	KindSchemaViolation: "SCHEMA_VIOLATION",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MarshalText renders the kind by name so stored records and JSON stay readable.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name produced by MarshalText.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// ValidationError is one detected defect. Values are never modified after creation.
type ValidationError struct {
	Kind          ErrorKind `json:"kind" bson:"kind"`
	Code          string    `json:"code" bson:"code"`
	Message       string    `json:"message" bson:"message"`
	Field         string    `json:"field,omitempty" bson:"field,omitempty"`
	Path          string    `json:"path,omitempty" bson:"path,omitempty"`
	ActualValue   any       `json:"actualValue,omitempty" bson:"actual_value,omitempty"`
	ExpectedValue any       `json:"expectedValue,omitempty" bson:"expected_value,omitempty"`
}

func (e ValidationError) String() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s] %s: %s", e.Kind, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s [%s] %s", e.Kind, e.Code, e.Message)
}

// Common defect codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeSchemaViolation = "SCHEMA_VIOLATION"
	CodeMissingField    = "MISSING_FIELD"
	CodeInvalidValue    = "INVALID_VALUE"
)

// StructuralError reports a document that could not be checked against its schema.
func StructuralError(code, msg, path string) ValidationError {
	return ValidationError{Kind: KindStructural, Code: code, Message: msg, Path: path}
}

// SchemaViolation reports one schema constraint failure at path.
func SchemaViolation(msg, path string) ValidationError {
	return ValidationError{Kind: KindSchemaViolation, Code: CodeSchemaViolation, Message: msg, Path: path}
}

// BusinessRuleError reports a semantic rule failure.
func BusinessRuleError(code, msg, field string, actual any) ValidationError {
	return ValidationError{Kind: KindBusinessRule, Code: code, Message: msg, Field: field, ActualValue: actual}
}

// FormatError reports a value that does not have the required lexical form.
func FormatError(code, msg, field string, actual any) ValidationError {
	return ValidationError{Kind: KindFormat, Code: code, Message: msg, Field: field, ActualValue: actual}
}

// MissingFieldError reports an absent mandatory element.
func MissingFieldError(field, path string) ValidationError {
	return ValidationError{
		Kind:    KindMissingField,
		Code:    CodeMissingField,
		Message: fmt.Sprintf("Required field '%s' is missing", field),
		Field:   field,
		Path:    path,
	}
}

// InvalidValueError reports a value outside its allowed domain.
func InvalidValueError(field string, actual, expected any) ValidationError {
	return ValidationError{
		Kind:          KindInvalidValue,
		Code:          CodeInvalidValue,
		Message:       fmt.Sprintf("Invalid value for field '%s': %v", field, actual),
		Field:         field,
		ActualValue:   actual,
		ExpectedValue: expected,
	}
}

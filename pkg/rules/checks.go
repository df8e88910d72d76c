package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-iso20022/pkg/document"
	"github.com/sirosfoundation/go-iso20022/pkg/isofmt"
	"github.com/sirosfoundation/go-iso20022/pkg/message"
)

// Defect codes
const (
	CodeInvalidMessageIDLength = "INVALID_MESSAGE_ID_LENGTH"
	CodeMissingDateTime        = "MISSING_CREATION_DATETIME"
	CodeInvalidDateTimeFormat  = "INVALID_CREATION_DATETIME_FORMAT"
	CodeInvalidAmountFormat    = "INVALID_AMOUNT_FORMAT"
	CodeInvalidAmountNumber    = "INVALID_AMOUNT_NUMBER"
	CodeInvalidAmountValue     = "INVALID_AMOUNT_VALUE"
	CodeInvalidCurrencyCode    = "INVALID_CURRENCY_CODE"
	CodeInvalidBICFormat       = "INVALID_BIC_FORMAT"
)

// CreationDateMissingCode returns the family specific code reported when the
// group header has no CreDtTm, e.g. "PACS_CREATION_DATE_MISSING".
func CreationDateMissingCode(f message.Family) string {
	area, _, _ := strings.Cut(f.Prefix(), ".")
	return strings.ToUpper(area) + "_CREATION_DATE_MISSING"
}

// Element names checked by the date and amount rules.
var (
	dateTimeFields = document.LocalNameIn("CreDtTm")
	dateFields     = document.LocalNameIn("IntrBkSttlmDt", "ReqdExctnDt", "ReqdColltnDt", "ValDt", "BookgDt")
	amountFields   = document.And(
		document.LocalNameIn("Amt", "InstdAmt", "EqvtAmt", "TtlIntrBkSttlmAmt", "IntrBkSttlmAmt", "RtrdIntrBkSttlmAmt"),
		document.Leaf(),
	)
	bicFields = document.And(document.LocalNameContains("BIC"), document.Leaf())
)

// Block that must occur at least once per family.
var requiredBlock = map[message.Family]string{
	message.FamilyPain001: "PmtInf",
	message.FamilyPacs008: "CdtTrfTxInf",
}

func checkMessageID(s *scope) error {
	grpHdr := document.Find(s.root, document.LocalName("GrpHdr"))
	msgID := document.Child(grpHdr, "MsgId")
	id := document.Text(msgID)
	if id == "" {
		path := "/GrpHdr/MsgId"
		if grpHdr != nil {
			path = locate(grpHdr) + "/MsgId"
		}
		s.add(message.MissingFieldError("MsgId", path), nil)
		return nil
	}
	if n := utf8.RuneCountInString(id); n > isofmt.MaxMessageIDLength {
		s.add(message.BusinessRuleError(
			CodeInvalidMessageIDLength,
			fmt.Sprintf("Message ID exceeds maximum length of %d characters (found %d)", isofmt.MaxMessageIDLength, n),
			"MsgId",
			id,
		), msgID)
	}
	return nil
}

func checkCreationDatePresent(s *scope) error {
	grpHdr := document.Find(s.root, document.LocalName("GrpHdr"))
	if document.Child(grpHdr, "CreDtTm") != nil {
		return nil
	}
	e := message.BusinessRuleError(
		CreationDateMissingCode(s.family),
		fmt.Sprintf("Creation date time is required for %s messages", s.family.Prefix()),
		"CreDtTm",
		nil,
	)
	if grpHdr != nil {
		e.Path = locate(grpHdr) + "/CreDtTm"
	}
	s.add(e, nil)
	return nil
}

func checkRequiredBlocks(s *scope) error {
	name, ok := requiredBlock[s.family]
	if !ok {
		return nil
	}
	if document.Find(s.root, document.LocalName(name)) == nil {
		s.add(message.MissingFieldError(name, "/"+name), nil)
	}
	return nil
}

func checkDates(s *scope) error {
	for _, el := range document.FindAll(s.root, dateTimeFields) {
		checkDateValue(s, el, isofmt.ParseDateTime)
	}
	for _, el := range document.FindAll(s.root, dateFields) {
		if document.IsLeaf(el) {
			checkDateValue(s, el, isofmt.ParseDateTime)
			continue
		}
		// DateAndDateTime2Choice: only the Dt branch may omit the time.
		if dt := document.Child(el, "Dt"); dt != nil {
			checkDateValue(s, dt, isofmt.ParseDateOrDateTime)
		}
		if dtTm := document.Child(el, "DtTm"); dtTm != nil {
			checkDateValue(s, dtTm, isofmt.ParseDateTime)
		}
	}
	return nil
}

func checkDateValue(s *scope, el *etree.Element, parse func(string) (time.Time, error)) {
	value := document.Text(el)
	if value == "" {
		s.add(message.BusinessRuleError(
			CodeMissingDateTime,
			fmt.Sprintf("Date field '%s' is empty", el.Tag),
			el.Tag,
			nil,
		), el)
		return
	}
	if _, err := parse(value); err != nil {
		s.add(message.FormatError(
			CodeInvalidDateTimeFormat,
			fmt.Sprintf("Invalid date format in field '%s': %s", el.Tag, value),
			el.Tag,
			value,
		), el)
	}
}

func checkAmounts(s *scope) error {
	for _, el := range document.FindAll(s.root, amountFields) {
		value := document.Text(el)
		if !isofmt.AmountFormatValid(value) {
			s.add(message.FormatError(
				CodeInvalidAmountFormat,
				fmt.Sprintf("Invalid amount format in field '%s': %s", el.Tag, value),
				el.Tag,
				value,
			), el)
		}

		amount, err := isofmt.ParseAmount(value)
		if errors.Is(err, isofmt.ErrNotNumeric) {
			s.add(message.FormatError(
				CodeInvalidAmountNumber,
				fmt.Sprintf("Amount in field '%s' is not a number: %s", el.Tag, value),
				el.Tag,
				value,
			), el)
			continue
		}
		if err != nil {
			return err
		}
		if amount <= 0 {
			s.add(message.BusinessRuleError(
				CodeInvalidAmountValue,
				fmt.Sprintf("Amount in field '%s' must be positive: %s", el.Tag, value),
				el.Tag,
				value,
			), el)
		}
	}
	return nil
}

func checkCurrencies(s *scope) error {
	allowed := s.profile.Currencies()
	document.Walk(s.root, func(el *etree.Element) bool {
		if a := attr(el, "Ccy"); a != nil {
			checkCurrency(s, el, "Ccy", strings.TrimSpace(a.Value), allowed)
		}
		if el.Tag == "Ccy" && document.IsLeaf(el) {
			checkCurrency(s, el, "Ccy", document.Text(el), allowed)
		}
		return true
	})
	return nil
}

func checkCurrency(s *scope, el *etree.Element, field, code string, allowed isofmt.CurrencySet) {
	if allowed.Contains(code) {
		return
	}
	if s.profile == ProfileSimplified {
		s.add(message.InvalidValueError(field, code, strings.Join(allowed.Codes(), ",")), el)
		return
	}
	s.add(message.BusinessRuleError(
		CodeInvalidCurrencyCode,
		fmt.Sprintf("Invalid currency code: %s", code),
		field,
		code,
	), el)
}

func checkBICs(s *scope) error {
	for _, el := range document.FindAll(s.root, bicFields) {
		value := document.Text(el)
		if !isofmt.BICValid(value) {
			s.add(message.FormatError(
				CodeInvalidBICFormat,
				fmt.Sprintf("Invalid BIC format in field '%s': %s", el.Tag, value),
				el.Tag,
				value,
			), el)
		}
	}
	return nil
}

// attr returns the attribute of el with the given local name.
func attr(el *etree.Element, name string) *etree.Attr {
	for i := range el.Attr {
		if el.Attr[i].Key == name {
			return &el.Attr[i]
		}
	}
	return nil
}

func locate(el *etree.Element) string {
	return document.LocationOf(el)
}

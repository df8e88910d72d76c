package message

import "strings"

// Family identifies an ISO 20022 message family (business area + message number).
type Family int

const (
	FamilyUnknown Family = iota
	FamilyPain001        // customer credit transfer initiation
	FamilyPain002        // customer payment status report
	FamilyPacs002        // FI to FI payment status report
	FamilyPacs004        // payment return
	FamilyPacs008        // FI to FI customer credit transfer
	FamilyCamt053        // bank to customer statement
	FamilyAdmi002        // message reject
)

// FamilyInfo describes a registered family.
type FamilyInfo struct {
	Family      Family
	Prefix      string
	Element     string // top-level business element
	Description string
}

var families = []FamilyInfo{
	{FamilyPain001, "pain.001", "CstmrCdtTrfInitn", "Customer Credit Transfer Initiation"},
	{FamilyPain002, "pain.002", "CstmrPmtStsRpt", "Customer Payment Status Report"},
	{FamilyPacs002, "pacs.002", "FIToFIPmtStsRpt", "FI To FI Payment Status Report"},
	{FamilyPacs004, "pacs.004", "PmtRtr", "Payment Return"},
	{FamilyPacs008, "pacs.008", "FIToFICstmrCdtTrf", "FI To FI Customer Credit Transfer"},
	{FamilyCamt053, "camt.053", "BkToCstmrStmt", "Bank To Customer Statement"},
	{FamilyAdmi002, "admi.002", "MsgRjct", "Message Reject"},
}

// Families returns the registered families in registration order.
func Families() []FamilyInfo {
	out := make([]FamilyInfo, len(families))
	copy(out, families)
	return out
}

// Classify maps a message type token such as "pacs.008.001.08" to its family.
func Classify(messageType string) Family {
	for _, f := range families {
		if strings.HasPrefix(messageType, f.Prefix) {
			return f.Family
		}
	}
	return FamilyUnknown
}

// FamilyForElement maps a top-level business element local name to its family.
func FamilyForElement(localName string) Family {
	for _, f := range families {
		if f.Element == localName {
			return f.Family
		}
	}
	return FamilyUnknown
}

// Info returns the registry entry of f. Unknown families return a zero entry.
func (f Family) Info() FamilyInfo {
	for _, info := range families {
		if info.Family == f {
			return info
		}
	}
	return FamilyInfo{Family: FamilyUnknown}
}

// Prefix returns the family prefix, e.g. "pain.001", or "unknown".
func (f Family) Prefix() string {
	if p := f.Info().Prefix; p != "" {
		return p
	}
	return UnknownType
}

func (f Family) String() string {
	return f.Prefix()
}

// Known reports whether f is a registered family.
func (f Family) Known() bool {
	return f != FamilyUnknown
}

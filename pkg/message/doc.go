// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the data model shared by every stage of the
ISO 20022 processing pipeline.

# Context

A [Context] is the normalized view of one inbound document: identity
(MsgId, type token such as "pacs.008.001.08", top-level element name),
participants, creation time, the raw text and the parsed tree. The parser
creates it; validators and the response generator only read it.

# Families

Message types are classified once with [Classify] into a [Family]. Every
stage dispatches on the family instead of probing handlers one by one:

	switch mc.Family() {
	case message.FamilyPacs008:
	    // payment status report
	case message.FamilyPain001:
	    // customer payment status report
	}

# Defects and results

Validators return ordered lists of [ValidationError]. The [ErrorKind] of a
defect selects the reason code used in responses. A [ProcessingResult]
folds the defects of all validators into a [Status]:

	StatusSuccess  - no defects (warnings allowed)
	StatusError    - at least one defect

# References

  - ISO 20022 message catalogue: https://www.iso20022.org/iso-20022-message-definitions
*/
package message

// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package rules implements the business rule checks applied to parsed
ISO 20022 documents.

Rules are registered per message family. Families with a group header
(pain.001, pain.002, pacs.002, pacs.004, pacs.008, camt.053) check the
message identification and creation date; pain.001 and pacs.008 also
require their transaction block. Every document, including one of unknown
type, is then checked for dates, amounts, currency codes and BICs found
anywhere in the tree by local name.

	v := rules.New(rules.WithProfile(rules.ProfileSimplified))
	defects, err := v.Validate(mc)

Each rule runs in isolation. A rule that fails internally contributes one
<CATEGORY>_VALIDATION_ERROR defect and the remaining rules still run.

# Profiles

[ProfileStandard] checks currencies against a list of 20 codes and reports
INVALID_CURRENCY_CODE business rule defects. [ProfileSimplified] uses a
list of 12 codes and reports INVALID_VALUE defects carrying the allowed
codes as expected value.
*/
package rules

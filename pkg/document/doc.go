// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package document turns raw ISO 20022 text into element trees and provides
namespace-agnostic queries over them.

# Parsing

[Parse] accepts UTF-8 text only and never expands entities. Documents that
carry a DOCTYPE, reference undeclared entities, are malformed or blank fail
with a [*ParsingError]:

	doc, err := document.Parse(raw)
	var perr *document.ParsingError
	if errors.As(err, &perr) {
	    // reject the request
	}

# Queries

Producers disagree on prefixes, so queries match local names only.
Predicates compose:

	msgID := document.Find(root, document.LocalName("MsgId"))
	bics := document.FindAll(root, document.And(document.LocalNameContains("BIC"), document.Leaf()))
	name := document.FindPath(root, "Dbtr", "Nm")
*/
package document

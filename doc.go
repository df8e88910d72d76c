// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package goiso20022 implements a simulator for ISO 20022 payment messages.

# Overview

go-iso20022 parses ISO 20022 XML documents, validates them structurally and
against business rules, and answers each one with the reply document a
counterparty would send: a payment status report, a payment return or a
message reject. It runs as a library, an HTTP service or a command line tool.

# Supported Messages

	pain.001  Customer Credit Transfer Initiation   -> pain.002
	pacs.008  FI To FI Customer Credit Transfer     -> pacs.002
	pacs.004  Payment Return                        -> pacs.002
	pain.002, pacs.002, camt.053, admi.002          -> pacs.002
	unrecognised documents                          -> admi.002

# Package Structure

	github.com/sirosfoundation/go-iso20022/pkg/document    - Hardened XML tree building and traversal
	github.com/sirosfoundation/go-iso20022/pkg/message     - Message context, families, validation results
	github.com/sirosfoundation/go-iso20022/pkg/isofmt      - ISO formats: amounts, currencies, BIC, IBAN, dates
	github.com/sirosfoundation/go-iso20022/pkg/parser      - Context extraction from documents
	github.com/sirosfoundation/go-iso20022/pkg/schema      - Structural (shape schema) validation
	github.com/sirosfoundation/go-iso20022/pkg/rules       - Business rule validation profiles
	github.com/sirosfoundation/go-iso20022/pkg/response    - Reply document generation
	github.com/sirosfoundation/go-iso20022/pkg/processor   - The parse, validate and respond pipeline
	github.com/sirosfoundation/go-iso20022/pkg/reliability - Duplicate message id detection
	github.com/sirosfoundation/go-iso20022/pkg/compression - GZIP request and response bodies
	github.com/sirosfoundation/go-iso20022/pkg/transport   - HTTPS client for a running simulator

# Quick Start

To process a document in-process:

	p := processor.New()
	o, err := p.Process(ctx, "", text)
	if err != nil {
	    // the input could not be parsed
	}
	fmt.Println(o.Result.Status, o.Response.MessageType)
	fmt.Println(o.Response.Text)

To run the simulator:

	iso20022sim serve --config config.yaml
	iso20022sim validate payment.xml --profile simplified
	iso20022sim submit payment.xml --url http://localhost:8080/api/v1/iso20022/process

# License

BSD-2-Clause License
*/
package goiso20022

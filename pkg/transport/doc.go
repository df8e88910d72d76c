// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport submits ISO 20022 documents to a running simulator.

# TLS Configuration

The client negotiates TLS 1.2 or 1.3:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3

For TLS 1.2, the following cipher suites are offered:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

HTTPSConfig.TLSConfig is also used by the server when TLS is enabled.

# Client Usage

	client := transport.NewHTTPSClient(nil)
	res, err := client.Submit(ctx, "http://localhost:8080/api/v1/iso20022/process", doc,
	    transport.SubmitOptions{MessageType: "pacs.008.001.08", Compress: true})

The result carries the generated reply document and the X-Message-ID,
X-Processing-Status and X-Processing-Time headers. Non-200 answers are
returned as *StatusError.

# References

  - TLS 1.3 RFC 8446: https://datatracker.ietf.org/doc/html/rfc8446
  - TLS 1.2 RFC 5246: https://datatracker.ietf.org/doc/html/rfc5246
*/
package transport

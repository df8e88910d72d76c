// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression handles gzip-encoded HTTP message bodies.

Inbound documents may arrive with Content-Encoding: gzip. Decompress them
with a size limit so a small compressed body cannot expand without bound:

	c := compression.NewCompressor(10 << 20)
	body, err := c.Decompress(raw)
	if errors.Is(err, compression.ErrTooLarge) {
	    // reply 413
	}

Responses are compressed when the client allows it and the body is large
enough to benefit:

	if compression.AcceptsGzip(r.Header.Get("Accept-Encoding")) &&
	    compression.ShouldCompress("application/xml", len(doc)) {
	    out, err := c.Compress(doc)
	}

# References

  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
  - HTTP content codings: https://datatracker.ietf.org/doc/html/rfc9110#section-8.4
*/
package compression

// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package reliability detects ISO 20022 messages that are received more than
once within a configurable window.

# Duplicate Detection

A [Detector] records every message identifier it is asked about and reports
whether the identifier was already seen inside the window:

	d := reliability.NewMemoryDetector(24 * time.Hour)
	defer d.Close()

	dup, err := d.Seen(ctx, mc.MessageID)
	if dup {
	    // warn, the message is still processed
	}

[MemoryDetector] keeps identifiers in process memory and purges expired
entries periodically. [RedisDetector] shares the window between simulator
instances using SET NX with an expiry; keys are the [Fingerprint] of the
identifier below a configurable prefix.

# Fingerprints

[Fingerprint] returns the hex SHA-256 digest of arbitrary content. It keeps
Redis keys bounded in length and is stored with processing records as the
digest of the raw document.
*/
package reliability

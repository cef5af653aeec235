// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package x509certs provides encoding and decoding operations for [X.509] certificates
// and the private keys that accompany them in an mTLS client identity.
//
// It decodes [PEM], DER and [PKCS7] certificate bundles, parses PKCS#1, PKCS#8 and
// SEC1 private keys, imports [PKCS12] archives, checks that a key belongs to the
// leaf it is uploaded with, and issues fresh CA and leaf certificates for local
// testing. The certificate store uses it to validate uploads and the binding uses
// the resulting [tls.Certificate] during the TLS handshake.
//
// [X.509]: https://grokipedia.com/page/X.509
// [PKCS7]: https://grokipedia.com/page/PKCS_7
// [PKCS12]: https://grokipedia.com/page/PKCS_12
// [PEM]: https://grokipedia.com/page/PEM#privacy-enhanced-mail
package x509certs

// Package common contains shared constants, sentinel errors and identifier
// helpers used by both the readkeeper client and the reference server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ShortIDLength is the number of characters in a highlight short id.
const ShortIDLength = 8

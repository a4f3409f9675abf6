// Package client is the readkeeper side of the remote annotation service.
//
// Remote is the contract the reconciliation engine, the content downloader and
// the CLI depend on. GRPCClient implements it over a gRPC connection using the
// JSON codec from internal/wire, attaching the access token to every call.
//
// Every error returned by GRPCClient wraps exactly one of ErrNetwork,
// ErrValidation, ErrNotFound or ErrUnauthorized. Classify turns an error into
// the Failure the engine acts on.
package client

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the Issuer client
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity already exists
// - ErrUnavailable: service or resource temporarily unavailable
// - ErrIssuer: the credentialing API returned a transport error or an error document
// - ErrDirectoryUnavailable: a paginated Issuer listing failed mid-stream
// - ErrCredentialCreate: the issuance POST failed; callers must not retry
// - ErrSyncFailed: group create/update against the Issuer failed
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnavailable          = errors.New("unavailable")
	ErrIssuer               = errors.New("issuer error")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	ErrCredentialCreate     = errors.New("credential create failed")
	ErrSyncFailed           = errors.New("group sync failed")
)

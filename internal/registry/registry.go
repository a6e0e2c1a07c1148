// Package registry fetches per-parcel facts from the public land registries:
// the data.go.kr land and building ledgers and the V-World parcel feature service.
//
// Every fetch returns a Result instead of an error. Failures never escape as
// panics or errors; the aggregator turns non-success results into placeholders.
package registry

import (
	"errors"
	"net/url"
)

// Status is the outcome of a registry fetch.
type Status string

const (
	// StatusSuccess means a record was found and decoded.
	StatusSuccess Status = "success"
	// StatusEmpty means the registry answered but holds no record for the parcel.
	StatusEmpty Status = "empty"
	// StatusError means the registry could not be reached, rejected the request,
	// or no credential was configured.
	StatusError Status = "error"
)

var (
	// ErrSourceUnavailable wraps transport failures and timeouts.
	ErrSourceUnavailable = errors.New("registry source unavailable")
	// ErrSourceRejected means the registry answered with an error envelope,
	// an unexpected status, or a body that is neither XML nor JSON.
	ErrSourceRejected = errors.New("registry source rejected request")
	// ErrNoRecord means the registry has no entry for the parcel.
	ErrNoRecord = errors.New("no record for parcel")
	// ErrCredentialMissing means no API key is configured for the source.
	ErrCredentialMissing = errors.New("registry credential missing")
)

// Result carries a fetched fact or the reason there is none.
// Fact is non-nil only when Status is StatusSuccess.
type Result[T any] struct {
	Status Status
	Fact   *T
	Err    error
}

func success[T any](fact *T) Result[T] {
	return Result[T]{Status: StatusSuccess, Fact: fact}
}

func empty[T any](err error) Result[T] {
	return Result[T]{Status: StatusEmpty, Err: err}
}

func failure[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}

// Credential is one encoding of a service key as it will appear in the query string.
type Credential struct {
	Name    string
	Encoded string
}

// CredentialVariants lists the encodings to try for a data.go.kr service key.
//
// The portal issues keys in an "encoding" form (already percent-escaped) and a
// "decoding" form, and operators paste either. The decoded key, query-escaped,
// is tried first; the raw value sent verbatim is tried second. Variants that
// produce the same query string are collapsed.
func CredentialVariants(raw string) []Credential {
	if raw == "" {
		return nil
	}

	var variants []Credential
	if decoded, err := url.PathUnescape(raw); err == nil {
		variants = append(variants, Credential{Name: "decoded", Encoded: url.QueryEscape(decoded)})
	}

	if len(variants) == 0 || variants[0].Encoded != raw {
		variants = append(variants, Credential{Name: "raw", Encoded: raw})
	}

	return variants
}

package querycache

import (
	"net/http"

	"github.com/jobdeck/go-querycache/errcode"
)

// ModuleCode querycache module code
const ModuleCode = 30

// Business error codes (30xxxx)
const (
	ErrCodeKeyInvalid     = 1
	ErrCodeFetchFailed    = 2
	ErrCodeMutationFailed = 3
	ErrCodeClientClosed   = 4
	ErrCodeConfigInvalid  = 5
	ErrCodeEntryNotFound  = 6
	ErrCodeFetchFnMissing = 7
)

var (
	// ErrKeyInvalid key cannot be canonically serialized
	ErrKeyInvalid = errcode.New(
		ModuleCode, ErrCodeKeyInvalid,
		"querycache", "error.querycache.key_invalid", "cache key invalid",
		http.StatusBadRequest,
	)

	// ErrFetchFailed fetch rejected after retries exhausted
	ErrFetchFailed = errcode.New(
		ModuleCode, ErrCodeFetchFailed,
		"querycache", "error.querycache.fetch_failed", "fetch failed",
		http.StatusBadGateway,
	)

	// ErrMutationFailed mutation rejected after retries exhausted
	ErrMutationFailed = errcode.New(
		ModuleCode, ErrCodeMutationFailed,
		"querycache", "error.querycache.mutation_failed", "mutation failed",
		http.StatusBadGateway,
	)

	// ErrClientClosed operation on a closed client
	ErrClientClosed = errcode.New(
		ModuleCode, ErrCodeClientClosed,
		"querycache", "error.querycache.client_closed", "cache client closed",
		http.StatusInternalServerError,
	)

	// ErrConfigInvalid configuration invalid
	ErrConfigInvalid = errcode.New(
		ModuleCode, ErrCodeConfigInvalid,
		"querycache", "error.querycache.config_invalid", "cache configuration invalid",
		http.StatusInternalServerError,
	)

	// ErrEntryNotFound no entry stored for the key
	ErrEntryNotFound = errcode.New(
		ModuleCode, ErrCodeEntryNotFound,
		"querycache", "error.querycache.entry_not_found", "cache entry not found",
		http.StatusNotFound,
	)

	// ErrFetchFnMissing entry has no fetch function registered
	ErrFetchFnMissing = errcode.New(
		ModuleCode, ErrCodeFetchFnMissing,
		"querycache", "error.querycache.fetch_fn_missing", "fetch function not registered",
		http.StatusInternalServerError,
	)
)

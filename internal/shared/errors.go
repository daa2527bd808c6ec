package shared

import "fmt"

var (
	// Migration pipeline errors
	ErrAuth      = fmt.Errorf("missing or invalid user context")
	ErrInput     = fmt.Errorf("no library file supplied")
	ErrParse     = fmt.Errorf("malformed library document")
	ErrStructure = fmt.Errorf("unexpected library structure")
	ErrRemoteAPI = fmt.Errorf("remote catalog request failed")
	ErrCancelled = fmt.Errorf("migration cancelled")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

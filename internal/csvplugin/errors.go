package csvplugin

import "errors"

var (
	// ErrMissingConfig is returned by Configure when no config struct is supplied.
	ErrMissingConfig = errors.New("csvplugin: no config provided")

	ErrInvalidSelector     = errors.New("csvplugin: invalid column selector")
	ErrInvalidExpression   = errors.New("csvplugin: invalid column expression")
	ErrSerializationFailed = errors.New("csvplugin: failed to write CSV template")

	// ErrNoContent is returned by Compare when either body has no readable record.
	ErrNoContent = errors.New("csvplugin: could not read a CSV record")

	ErrUnknownRuleType      = errors.New("csvplugin: unknown matching rule type")
	ErrUnknownGeneratorType = errors.New("csvplugin: unknown generator type")
)

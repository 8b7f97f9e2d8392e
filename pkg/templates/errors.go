package templates

import "errors"

var (
	ErrTemplateNotFound   = errors.New("template not found")
	ErrSourceNil          = errors.New("template source cannot be nil")
	ErrInvalidTemplate    = errors.New("invalid template definition")
	ErrMissingVariables   = errors.New("required template variables missing")
	ErrFailedToLoadSource = errors.New("failed to load template source")
)

package form

import "errors"

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrSectionNotFound   = errors.New("section not found")
	ErrFieldNotFound     = errors.New("field not found")
	ErrTemplateLimit     = errors.New("template limit reached")
	ErrSectionLimit      = errors.New("section limit reached")
	ErrUnknownFieldType  = errors.New("unknown field type")
	ErrUnknownUploadKind = errors.New("unknown upload type")
	ErrNotUploadField    = errors.New("field is not an upload field")
	ErrInvalidAnswer     = errors.New("answer must be a string, number or boolean")
)

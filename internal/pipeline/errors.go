package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies where in the pipeline a failure originated.
type Kind string

const (
	KindDownload     Kind = "download"
	KindTranscode    Kind = "transcode"
	KindSegmentation Kind = "segmentation"
	KindPlaylist     Kind = "playlist"
	KindFilesystem   Kind = "filesystem"
)

// Error is a pipeline failure annotated with its stage and contextual
// key/value pairs carried into logs and job records.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// With attaches a contextual key/value pair and returns the error for
// chaining.
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the stage classification from an error chain. Errors
// raised outside the pipeline report KindFilesystem as the conservative
// default.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindFilesystem
}

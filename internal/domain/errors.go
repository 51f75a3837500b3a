package domain

import (
	"errors"
	"fmt"
)

var ErrEmptyInput = errors.New("no text to summarize")

type EmptyInputError struct {
	Stage string
}

func (e *EmptyInputError) Error() string {
	if e.Stage == "" {
		return ErrEmptyInput.Error()
	}

	return fmt.Sprintf("%s: %s", e.Stage, ErrEmptyInput)
}

func (e *EmptyInputError) Unwrap() error {
	return ErrEmptyInput
}

type TextProcessingError struct {
	Err error
}

func (e *TextProcessingError) Error() string {
	return fmt.Sprintf("process text: %v", e.Err)
}

func (e *TextProcessingError) Unwrap() error {
	return e.Err
}

type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type CompletionErrorKind string

const (
	CompletionErrorNetwork   CompletionErrorKind = "network"
	CompletionErrorAuth      CompletionErrorKind = "auth"
	CompletionErrorQuota     CompletionErrorKind = "quota"
	CompletionErrorMalformed CompletionErrorKind = "malformed"
	CompletionErrorCanceled  CompletionErrorKind = "canceled"
)

type CompletionError struct {
	Kind CompletionErrorKind
	Err  error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed (kind = %s): %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"context"
	stderrors "errors"

	"github.com/pingcap/errors"
)

// WrapError generates a new error based on given `*errors.Error`, wraps the err
// as cause error.
// If given `err` is nil, returns a nil error, which a the different behavior
// against `Wrap` function in pingcap/errors.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

type rfcCoder interface {
	RFCCode() errors.RFCErrorCode
}

// RFCCode returns a RFCCode for an error, walking the cause and unwrap
// chains until one is found.
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	for err != nil {
		if coder, ok := err.(rfcCoder); ok {
			return coder.RFCCode(), true
		}
		if coder, ok := errors.Cause(err).(rfcCoder); ok {
			return coder.RFCCode(), true
		}
		err = stderrors.Unwrap(err)
	}
	return "", false
}

// hasCode reports whether err carries the RFC code of target.
func hasCode(err error, target *errors.Error) bool {
	code, ok := RFCCode(err)
	return ok && code == target.RFCCode()
}

// IsRemoteCommandError reports whether err is a failure of a remote command,
// including a remote command that stopped producing output.
func IsRemoteCommandError(err error) bool {
	return hasCode(err, ErrRemoteCommand) || hasCode(err, ErrRemoteReadTimeout)
}

// IsProcessNotFound reports whether err says the process to kill is already gone.
func IsProcessNotFound(err error) bool {
	return hasCode(err, ErrProcessNotFound)
}

// IsContextCanceledError checks if an error is caused by context.Canceled.
func IsContextCanceledError(err error) bool {
	return errors.Cause(err) == context.Canceled || stderrors.Is(err, context.Canceled)
}

// IsCliUnprintableError returns true if the error should not be printed in cli.
func IsCliUnprintableError(err error) bool {
	if err == nil {
		return false
	}
	return hasCode(err, ErrCliAborted)
}

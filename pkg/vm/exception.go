package vm

import (
	"errors"
	"fmt"
)

// Managed exception classes raised or translated by the loading core.
const (
	ClassCircularityError  = "java/lang/ClassCircularityError"
	LinkageError           = "java/lang/LinkageError"
	NoClassDefFoundError   = "java/lang/NoClassDefFoundError"
	ClassFormatError       = "java/lang/ClassFormatError"
	VerifyError            = "java/lang/VerifyError"
	OutOfMemoryError       = "java/lang/OutOfMemoryError"
	ClassNotFoundException = "java/lang/ClassNotFoundException"
	UnsatisfiedLinkError   = "java/lang/UnsatisfiedLinkError"
	InternalError          = "java/lang/InternalError"
)

// JavaException represents a JVM exception being thrown.
type JavaException struct {
	Object  *JObject
	Message string
	Cause   error
}

func (e *JavaException) Error() string {
	if e.Message == "" {
		return e.Object.ClassName
	}
	return fmt.Sprintf("%s: %s", e.Object.ClassName, e.Message)
}

func (e *JavaException) Unwrap() error {
	return e.Cause
}

// ClassName returns the exception's class name.
func (e *JavaException) ClassName() string {
	return e.Object.ClassName
}

func NewJavaException(className string) *JavaException {
	return &JavaException{Object: NewObject(className)}
}

// newException builds an exception with a formatted message.
func newException(className, format string, args ...any) *JavaException {
	e := NewJavaException(className)
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// wrapException builds an exception carrying cause.
func wrapException(className string, cause error, format string, args ...any) *JavaException {
	e := newException(className, format, args...)
	e.Cause = cause
	return e
}

// IsJavaException reports whether the outermost JavaException in err's
// chain is of the given class.
func IsJavaException(err error, className string) bool {
	je, ok := asJavaException(err)
	return ok && je.ClassName() == className
}

// asJavaException returns the outermost JavaException in err's chain.
func asJavaException(err error) (*JavaException, bool) {
	var je *JavaException
	ok := errors.As(err, &je)
	return je, ok
}

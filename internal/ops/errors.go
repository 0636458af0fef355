package ops

import "fmt"

// Kind is the closed set of failure categories an operation may surface.
// Anything outside this set is a collaborator error and passes through
// untranslated.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindPermissionDenied Kind = "permission-denied"
	KindInvalidArgument  Kind = "invalid-argument"
	KindAlreadyExists    Kind = "already-exists"
)

type Failure struct {
	Kind    Kind
	Message string
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func failUnauthenticated(message string) *Failure {
	return &Failure{Kind: KindUnauthenticated, Message: message}
}

func failPermissionDenied(message string) *Failure {
	return &Failure{Kind: KindPermissionDenied, Message: message}
}

func failInvalidArgument(message string) *Failure {
	return &Failure{Kind: KindInvalidArgument, Message: message}
}

func failAlreadyExists(message string) *Failure {
	return &Failure{Kind: KindAlreadyExists, Message: message}
}

package failure

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
)

// Equal returns a Failure describing the difference when want and got are not equal.
func Equal(want, got any, msgAndArgs ...any) error {
	if diff := cmp.Diff(want, got); diff != "" {
		return &Failure{Message: prefix(msgAndArgs) + fmt.Sprintf("values differ (-want +got):\n%s", diff)}
	}
	return nil
}

// NotEqual returns a Failure when unexpected and got are equal.
func NotEqual(unexpected, got any, msgAndArgs ...any) error {
	if cmp.Equal(unexpected, got) {
		return &Failure{Message: prefix(msgAndArgs) + fmt.Sprintf("expected value other than %#v", got)}
	}
	return nil
}

// True returns a Failure when cond is false.
func True(cond bool, msgAndArgs ...any) error {
	if !cond {
		return &Failure{Message: prefix(msgAndArgs) + "condition is false"}
	}
	return nil
}

// NoError returns a Failure wrapping err when err is not nil.
func NoError(err error, msgAndArgs ...any) error {
	if err != nil {
		return &Failure{Message: prefix(msgAndArgs) + "unexpected error", Cause: err}
	}
	return nil
}

func prefix(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprint(msgAndArgs...) + ": "
	}
	return fmt.Sprintf(format, msgAndArgs[1:]...) + ": "
}

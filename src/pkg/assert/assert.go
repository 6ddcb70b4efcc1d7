package assert

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Assert panics when the condition does not hold. Redo code uses it for
// structural invariants: a failed assertion means the on-disk tree can no
// longer be trusted and recovery must not continue.
func Assert(condition bool, args ...any) bool {
	if condition {
		return true
	}

	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
		line = 0
	}
	filename := filepath.Base(file)

	if len(args) > 0 {
		format := args[0].(string)
		message := fmt.Sprintf(format, args[1:]...)
		panic(fmt.Sprintf("Assertion failed: %s at %s:%d\n", message, filename, line))
	}
	panic(fmt.Sprintf("Assertion failed at %s:%d\n", filename, line))
}

func NoError(err error) {
	Assert(err == nil, "expected no error, got: %v", err)
}

func NoErrorWithMessage(err error, message string) {
	Assert(err == nil, message, err)
}

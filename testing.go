package testfixtures

import (
	"errors"
	"testing"
)

var errBodyFailed = errors.New("test body failed")

// RunT runs directives around body as part of a Go test.
//
// A body that marks t as failed skips the Check directives. Failures recorded
// on t before RunT do not. Any directive failure is reported with t.Fatal.
func (o *Orchestrator) RunT(t testing.TB, directives []Directive, body func()) {
	t.Helper()

	failedBefore := t.Failed()
	err := o.Run(directives, func() error {
		body()
		if !failedBefore && t.Failed() {
			return errBodyFailed
		}
		return nil
	})
	if err != nil && !errors.Is(err, errBodyFailed) {
		t.Fatal(err)
	}
}

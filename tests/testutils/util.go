// Package testutils provides test infrastructure for burstcheck integration tests.
package testutils

import (
	"bytes"
	"path/filepath"
	"runtime"

	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/agar/pkg/agar"

	"github.com/farcloser/burstcheck/internal/chunk"
	"github.com/farcloser/burstcheck/internal/types"
)

// Reference is the stereo burst used by the fixtures: translen 4, two channels.
//
//nolint:gochecknoglobals // fixture data, effectively const
var Reference = []int32{1, 1, 2, 2, 3, 3, 4, 4}

// Setup creates a test case configured to run the burstcheck binary.
func Setup() *test.Case {
	_, thisFile, _, _ := runtime.Caller(0) //nolint:dogsled // runtime.Caller returns 4 values, only file is needed
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	binaryPath := filepath.Join(projectRoot, "bin", "burstcheck")

	return agar.Setup(binaryPath)
}

// Capture writes count 16-bit stereo bursts to a temp file and returns its path.
// The bursts listed in bad get their first sample moved by delta.
func Capture(data test.Data, name string, count int, delta int32, bad ...int) string {
	var buf bytes.Buffer

	for idx := range count {
		burst := Reference

		for _, b := range bad {
			if b == idx {
				burst = append([]int32{Reference[0] + delta}, Reference[1:]...)
			}
		}

		buf.Write(chunk.Encode(burst, types.Width16))
	}

	return data.Temp().Save(buf.String(), name)
}

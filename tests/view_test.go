package tests_test

import (
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/burstcheck/tests/testutils"
)

func TestViewCLI(t *testing.T) {
	testCase := testutils.Setup()

	testCase.SubTests = []*test.Case{
		{
			Description: "view needs a file and a range",
			Command:     test.Command(append(append([]string{"view"}, layout...), "/nonexistent/awg_rtm_stream.dat")...),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "view prints one list per channel",
			Setup: func(data test.Data, _ test.Helpers) {
				data.Labels().Set("file", testutils.Capture(data, "stream.dat", 3, 0))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				args := append(append([]string{"view", "--format", "json"}, layout...), data.Labels().Get("file"), "0:1")

				return helpers.Command(args...)
			},
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{
					ExitCode: expect.ExitCodeSuccess,
					Output: expect.All(
						expectContains("channels"),
						expectContains("end_burst"),
					),
				}
			},
		},
		{
			Description: "view rejects a malformed range",
			Setup: func(data test.Data, _ test.Helpers) {
				data.Labels().Set("file", testutils.Capture(data, "stream.dat", 3, 0))
			},
			Command: func(data test.Data, helpers test.Helpers) test.TestableCommand {
				args := append(append([]string{"view"}, layout...), data.Labels().Get("file"), "first")

				return helpers.Command(args...)
			},
			Expected: test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
	}

	testCase.Run(t)
}

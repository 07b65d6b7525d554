/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package action

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFilterLeadingNonJSONLinesSkipsBanner(t *testing.T) {
	in := "Warning: unprotected private key file!\nMOTD banner line\n{\"changed\": false}\n"
	out := filterLeadingNonJSONLines(in)
	require.Equal(t, "{\"changed\": false}\n", out)
}

func TestFilterLeadingNonJSONLinesPreservesMultilineJSON(t *testing.T) {
	in := "{\n  \"changed\": true\n}\n"
	require.Equal(t, in, filterLeadingNonJSONLines(in))
}

func TestParseReturnedDataHappyPath(t *testing.T) {
	res := &LowLevelResult{Stdout: `{"changed": true, "rc": 0}`}
	data := parseReturnedData(res)
	require.Equal(t, true, data["changed"])
}

func TestParseReturnedDataDegradesOnParseFailure(t *testing.T) {
	res := &LowLevelResult{Stdout: "not json at all", Stderr: "Traceback (most recent call last):\nboom"}
	data := parseReturnedData(res)
	require.Equal(t, true, data["failed"])
	require.Equal(t, false, data["parsed"])
	require.Equal(t, "not json at all", data["module_stdout"])
	require.Contains(t, data["exception"], "Traceback")
}

func TestParseReturnedDataTrimsBannerThenParses(t *testing.T) {
	res := &LowLevelResult{Stdout: "ssh warning noise\n{\"changed\": false}\n"}
	data := parseReturnedData(res)
	require.Equal(t, false, data["changed"])
}

func TestParseReturnedDataMatchesFullExpectedShape(t *testing.T) {
	res := &LowLevelResult{Stdout: `{"changed": true, "rc": 0, "stdout": "ok"}`}
	got := parseReturnedData(res)
	want := ModuleResult{"changed": true, "rc": float64(0), "stdout": "ok"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parseReturnedData() mismatch (-want +got):\n%s", diff)
	}
}

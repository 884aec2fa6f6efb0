package tools

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestFormatFloat(t *testing.T) {
	test.That(t, FormatFloat(1.5), test.ShouldEqual, "1.500000")
	test.That(t, FormatFloat(1e10), test.ShouldEqual, "10000000000.000000")
	test.That(t, FormatFloat(math.Inf(1)), test.ShouldEqual, "+Inf")
	test.That(t, FormatFloat(math.NaN()), test.ShouldEqual, "NaN")
	test.That(t, FormatVector(r3.Vector{X: 1, Y: -2, Z: 0.25}), test.ShouldEqual, "1.000000, -2.000000, 0.250000")
}

func TestIsFloatEqual(t *testing.T) {
	test.That(t, IsFloatEqual(1, 1+FloatMin/2), test.ShouldBeTrue)
	test.That(t, IsFloatEqual(1, 1+2*FloatMin), test.ShouldBeFalse)
}

func TestLogOutput(t *testing.T) {
	var buf bytes.Buffer
	SetLoggerOutput(&buf)
	defer SetLoggerOutput(os.Stdout)

	LogOutputf("%d nodes", 3)
	test.That(t, buf.String(), test.ShouldStartWith, "[")
	test.That(t, buf.String(), test.ShouldEndWith, "] 3 nodes\n")

	buf.Reset()
	printTimestamp = false
	LogOutput("done")
	test.That(t, buf.String(), test.ShouldEqual, "done\n")

	buf.Reset()
	isEnabled = false
	LogOutput("muted")
	test.That(t, buf.String(), test.ShouldBeEmpty)
	isEnabled, printTimestamp = true, true
}

func TestGetFilesWithExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"r1.las", "r.LAS", "r.xyz", "notes.txt"} {
		test.That(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644), test.ShouldBeNil)
	}
	test.That(t, os.Mkdir(filepath.Join(dir, "sub.las"), 0o755), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dir, "sub.las", "r2.las"), nil, 0o644), test.ShouldBeNil)

	files, err := NewStandardFileFinder().GetFilesWithExtension(dir, ".las")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldResemble, []string{filepath.Join(dir, "r.LAS"), filepath.Join(dir, "r1.las")})

	_, err = NewStandardFileFinder().GetFilesWithExtension(filepath.Join(dir, "missing"), ".las")
	test.That(t, err, test.ShouldNotBeNil)
}

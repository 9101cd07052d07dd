// Package externalapp is a fake external program used to test handlers end to end.
//
// It reverses the words of every content line and every input metadata value:
//
//	-ic <file>   content input file (stdin when missing)
//	-oc <file>   content output file (stdout when missing)
//	-im <file>   input metadata file (properties)
//	-om <file>   output metadata file (properties)
//	-ref <ref>   document reference, printed on stderr
//	-exit <code> exit code
//	-sleep <d>   sleeps before doing anything
//
// The STDOUT_BEFORE, STDOUT_AFTER, STDERR_BEFORE and STDERR_AFTER environment
// variables are printed as lines around the regular output.
package externalapp

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/slok/extagger/internal/metaformat"
	"github.com/slok/extagger/internal/model"
)

const (
	// EnvEnable makes a test binary behave as the external app (see RunIfEnabled).
	EnvEnable = "EXTAGGER_EXTERNAL_APP"

	EnvStdoutBefore = "STDOUT_BEFORE"
	EnvStdoutAfter  = "STDOUT_AFTER"
	EnvStderrBefore = "STDERR_BEFORE"
	EnvStderrAfter  = "STDERR_AFTER"
)

// RunIfEnabled runs the app and exits the process when EnvEnable is set. It's meant to
// be called from TestMain so the test binary can be used as the external program.
func RunIfEnabled() {
	if os.Getenv(EnvEnable) == "" {
		return
	}
	os.Exit(Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv))
}

// Command returns the command line that runs the current binary as the external app
// followed by args. The binary must call RunIfEnabled.
func Command(args string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%q %s", exe, args), nil
}

// Main runs the app and returns the exit code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("externalapp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		inContent  = fs.String("ic", "", "")
		outContent = fs.String("oc", "", "")
		inMeta     = fs.String("im", "", "")
		outMeta    = fs.String("om", "", "")
		ref        = fs.String("ref", "", "")
		exitCode   = fs.Int("exit", 0, "")
		sleep      = fs.Duration("sleep", 0, "")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	time.Sleep(*sleep)

	if err := run(*inContent, *outContent, *inMeta, *outMeta, *ref, stdin, stdout, stderr, getenv); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err)
		return 1
	}

	return *exitCode
}

func run(inContent, outContent, inMeta, outMeta, ref string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	printEnvLine(stdout, getenv(EnvStdoutBefore))
	printEnvLine(stderr, getenv(EnvStderrBefore))

	// Content.
	in := stdin
	if inContent != "" {
		f, err := os.Open(inContent)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	out := stdout
	if outContent != "" {
		f, err := os.Create(outContent)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := reverseLines(in, out); err != nil {
		return err
	}

	// Metadata.
	if inMeta != "" && outMeta != "" {
		if err := reverseMetadata(inMeta, outMeta); err != nil {
			return err
		}
	}

	if ref != "" {
		fmt.Fprintf(stderr, "reference: %s\n", ref)
	}

	printEnvLine(stdout, getenv(EnvStdoutAfter))
	printEnvLine(stderr, getenv(EnvStderrAfter))

	return nil
}

func printEnvLine(w io.Writer, v string) {
	if v != "" {
		fmt.Fprintln(w, v)
	}
}

func reverseLines(r io.Reader, w io.Writer) error {
	s := bufio.NewScanner(r)
	for s.Scan() {
		if _, err := fmt.Fprintln(w, reverseWords(s.Text())); err != nil {
			return err
		}
	}
	return s.Err()
}

func reverseMetadata(inPath, outPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	f := metaformat.Properties{}
	in, err := f.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}

	out := model.Metadata{}
	for _, k := range in.Fields() {
		for _, v := range in.Get(k) {
			out.Add(k, reverseWords(v))
		}
	}

	var buf bytes.Buffer
	if err := f.Encode(&buf, out); err != nil {
		return err
	}
	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

func reverseWords(s string) string {
	words := strings.Fields(s)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " ")
}

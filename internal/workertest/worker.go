// Package workertest provides a scriptable fake worker for tests.
//
// The fake worker is the test binary itself: a package's TestMain calls
// RunIfWorker, and tests point the bridge at the test executable with the
// environment returned by Env.
//
//	func TestMain(m *testing.M) {
//	    workertest.RunIfWorker()
//	    os.Exit(m.Run())
//	}
//
// The worker echoes a "[n]" sequence token from each command in its header.
// Started with TimestampedEnv it behaves like the ticket system instead: the
// first token of every line is read as the command timestamp, so a line
// without one loses its command word and is answered "[<word>] -1".
//
// Both modes understand these commands:
//
//	echo <text>          header <text>
//	lines <k> [tag]      header k, then k lines "<tag> <i>"
//	query_ticket <k>     header k, then k ticket lines
//	query_order <k>      header k, then k order lines
//	sleep <duration>     sleeps, then header "slept"
//	badseq               header carrying the wrong sequence token
//	notoken <text>       header <text> without a sequence token
//	stray                header "0", then one unsolicited line
//	truncate <k>         header k, then k-1 lines, then exits 0
//	partial              header without a trailing newline, then exits 0
//	crash <code>         writes to stderr and exits with code
//	exit                 exits 0 without output
//
// Unknown commands are answered with header "-1".
package workertest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvKey marks a process as the fake worker.
const EnvKey = "LINEBRIDGE_FAKE_WORKER"

// TimestampedMode is the EnvKey value selecting the timestamped worker.
const TimestampedMode = "timestamped"

// RunIfWorker runs the fake worker and exits when the process was started
// as one. Otherwise it returns immediately.
func RunIfWorker() {
	switch os.Getenv(EnvKey) {
	case "":
		return
	case TimestampedMode:
		os.Exit(ServeTimestamped(os.Stdin, os.Stdout, os.Stderr))
	default:
		os.Exit(Serve(os.Stdin, os.Stdout, os.Stderr))
	}
}

// Executable returns the path of the running test binary.
func Executable() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate test binary: %w", err)
	}

	return path, nil
}

// Env returns the environment that turns the test binary into the fake worker.
func Env() map[string]string {
	return map[string]string{EnvKey: "1"}
}

// TimestampedEnv returns the environment that turns the test binary into the
// timestamped fake worker.
func TimestampedEnv() map[string]string {
	return map[string]string{EnvKey: TimestampedMode}
}

// Serve runs the fake worker over the given streams and returns its exit code.
func Serve(in io.Reader, out, errOut io.Writer) int {
	return serveLines(in, out, errOut, splitToken)
}

// ServeTimestamped runs the timestamped fake worker.
func ServeTimestamped(in io.Reader, out, errOut io.Writer) int {
	return serveLines(in, out, errOut, splitTimestamp)
}

func serveLines(in io.Reader, out, errOut io.Writer, split func(string) (string, string)) int {
	w := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		seq, command := split(scanner.Text())

		code, done := handle(w, errOut, seq, command)
		if err := w.Flush(); err != nil {
			return 1
		}

		if done {
			return code
		}
	}

	return 0
}

// splitToken strips a leading "[n] " token. seq is empty when there is none.
func splitToken(line string) (string, string) {
	if !strings.HasPrefix(line, "[") {
		return "", line
	}

	end := strings.IndexByte(line, ']')
	if end < 0 {
		return "", line
	}

	return line[1:end], strings.TrimPrefix(line[end+1:], " ")
}

// splitTimestamp reads the first token as the timestamp, bracketed or not.
func splitTimestamp(line string) (string, string) {
	first, rest, _ := strings.Cut(strings.TrimSpace(line), " ")

	return strings.TrimSuffix(strings.TrimPrefix(first, "["), "]"), strings.TrimSpace(rest)
}

func header(w io.Writer, seq, payload string) {
	if seq == "" {
		fmt.Fprintln(w, payload)

		return
	}

	fmt.Fprintf(w, "[%s] %s\n", seq, payload)
}

func handle(w io.Writer, errOut io.Writer, seq, command string) (int, bool) {
	name, rest, _ := strings.Cut(command, " ")
	args := strings.Fields(rest)

	switch name {
	case "echo":
		header(w, seq, rest)

	case "lines", "query_ticket", "query_order":
		k := intArg(args, 0)

		tag := "line"

		switch {
		case name == "query_ticket":
			tag = "G100 A 06-01 08:00 -> B 06-01 12:00 100"
		case name == "query_order":
			tag = "[success] G100 A 06-01 08:00 -> B 06-01 12:00 100"
		case len(args) > 1:
			tag = args[1]
		}

		header(w, seq, strconv.Itoa(k))

		for i := range k {
			fmt.Fprintf(w, "%s %d\n", tag, i)
		}

	case "sleep":
		d, err := time.ParseDuration(rest)
		if err == nil {
			time.Sleep(d)
		}

		header(w, seq, "slept")

	case "badseq":
		n, _ := strconv.Atoi(seq)
		header(w, strconv.Itoa(n+1), "0")

	case "notoken":
		header(w, "", rest)

	case "stray":
		header(w, seq, "0")
		fmt.Fprintln(w, "unsolicited")

	case "truncate":
		k := intArg(args, 0)
		header(w, seq, strconv.Itoa(k))

		for i := range k - 1 {
			fmt.Fprintf(w, "line %d\n", i)
		}

		return 0, true

	case "partial":
		if seq != "" {
			fmt.Fprintf(w, "[%s] 0", seq)
		} else {
			fmt.Fprint(w, "0")
		}

		return 0, true

	case "crash":
		fmt.Fprintln(errOut, "fake worker crashed")

		return intArg(args, 0), true

	case "exit":
		return 0, true

	default:
		header(w, seq, "-1")
	}

	return 0, false
}

func intArg(args []string, i int) int {
	if i >= len(args) {
		return 0
	}

	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0
	}

	return n
}

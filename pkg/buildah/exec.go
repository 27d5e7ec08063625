package buildah

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Executor runs a command line and returns its standard output.
type Executor func(cmdSlice []string, stdin io.Reader, verbose bool) ([]byte, error)

// Execute shell command through informed though a slice of strings. It can return error in case of
// the command itself returning error, where the error message carries the command's stderr.
func Execute(cmdSlice []string, stdin io.Reader, verbose bool) ([]byte, error) {
	log.V(3).Infof("Executing shell command '%s'", cmdSlice)

	var cmd *exec.Cmd
	if len(cmdSlice) == 1 {
		cmd = exec.Command(cmdSlice[0], []string{}...)
	} else {
		cmd = exec.Command(cmdSlice[0], cmdSlice[1:]...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = stdin

	if err := cmd.Run(); err != nil {
		if verbose {
			log.V(0).Infof("ERROR: Command '%q' failed with error '%s', stdout: '%s', stderr: '%s'",
				cmdSlice, err, stdout.Bytes(), stderr.Bytes())
		}
		if msg := strings.TrimSpace(stderr.String()); len(msg) > 0 {
			return stdout.Bytes(), fmt.Errorf("%v: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	if verbose {
		log.V(5).Infof("command='%q', stdout='%s', stderr='%s'",
			cmdSlice, stdout.Bytes(), stderr.Bytes())
	}
	return stdout.Bytes(), nil
}

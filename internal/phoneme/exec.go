package phoneme

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execPhonemizer struct {
	cmd []string
	mu  sync.Mutex
}

type execRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type execResponse struct {
	Phonemes string `json:"phonemes"`
	Error    string `json:"error,omitempty"`
}

// NewExec builds a phonemizer that shells out to an espeak-style helper.
// The helper reads one JSON request on stdin and writes one JSON response
// line on stdout.
func NewExec(command string) (Phonemizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse phonemizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("phonemizer command empty")
	}
	return &execPhonemizer{cmd: args}, nil
}

func (e *execPhonemizer) Phonemize(ctx context.Context, text, language string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{Text: text, Language: language})
	if err != nil {
		return "", &Error{Language: language, Err: err}
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", &Error{Language: language, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &Error{Language: language, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return "", &Error{Language: language, Err: err}
	}

	if _, err := stdin.Write(payload); err != nil {
		cmd.Wait()
		return "", &Error{Language: language, Err: err}
	}
	stdin.Close()

	scanner := bufio.NewScanner(stdout)
	var resp execResponse
	if scanner.Scan() {
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			cmd.Wait()
			return "", &Error{Language: language, Err: err}
		}
	}
	if err := cmd.Wait(); err != nil {
		return "", &Error{Language: language, Err: err}
	}
	if resp.Error != "" {
		return "", &Error{Language: language, Err: fmt.Errorf("%s", resp.Error)}
	}
	return resp.Phonemes, nil
}

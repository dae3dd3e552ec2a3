package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// EncodeLine serializes a Line as a single JSON line and writes it to w.
func EncodeLine(w io.Writer, line *Line) error {
	if err := validateLine(line); err != nil {
		return err
	}
	if line.Bundle == nil {
		line.Bundle = map[string]string{}
	}

	encoder := json.NewEncoder(w)
	if err := encoder.Encode(line); err != nil {
		return fmt.Errorf("failed to encode line: %w", err)
	}
	return nil
}

// DecodeLine parses one JSON line strictly.
func DecodeLine(data []byte) (*Line, error) {
	var line Line
	if err := json.Unmarshal(data, &line); err != nil {
		return nil, fmt.Errorf("status line is not valid JSON: %w", err)
	}
	if err := validateLine(&line); err != nil {
		return nil, err
	}
	return &line, nil
}

// DecodeStream reads status lines from r until the result line or EOF.
// Blank lines are skipped. A stream that ends without a result line is an error.
func DecodeStream(r io.Reader) ([]*Line, error) {
	var out []*Line
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		line, err := DecodeLine(raw)
		if err != nil {
			return out, err
		}
		out = append(out, line)
		if line.Terminal() {
			return out, nil
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("failed to read status stream: %w", err)
	}
	return out, fmt.Errorf("status stream ended without a result line")
}

func validateLine(line *Line) error {
	if line == nil {
		return fmt.Errorf("line is nil")
	}
	switch line.Type {
	case TypeStatus:
		if line.Bundle[KeyDismissedApp] == "" {
			return fmt.Errorf("status line missing %q", KeyDismissedApp)
		}
	case TypeResult:
		if line.Code != ResultOK && line.Code != ResultCanceled {
			return fmt.Errorf("invalid result code: %d", line.Code)
		}
	case "":
		return fmt.Errorf("line missing required field: type")
	default:
		return fmt.Errorf("invalid line type: %q", line.Type)
	}
	return nil
}

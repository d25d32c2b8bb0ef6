package analyzer

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"ledger/internal/core"
)

// ParseResult decodes the analyzer's standard output. Unknown fields are
// ignored, key matching is case-insensitive, and missing arrays come back as
// empty slices.
func ParseResult(stdout string) (*core.AnalyticsResult, error) {
	s := strings.TrimPrefix(stdout, "\ufeff")
	if strings.TrimSpace(s) == "" {
		return nil, &Error{Kind: KindEmptyOutput, Msg: "analyzer returned no data (empty output)"}
	}

	dec := json.NewDecoder(strings.NewReader(s))
	var res *core.AnalyticsResult
	if err := dec.Decode(&res); err != nil {
		return nil, &Error{Kind: KindParse, Msg: "parse analyzer output: " + err.Error(), Err: err}
	}
	if res == nil {
		return nil, &Error{Kind: KindParse, Msg: "parse analyzer output: result is null"}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		msg := "parse analyzer output: unexpected data after JSON object"
		if err != nil {
			msg = "parse analyzer output: " + err.Error()
		}
		return nil, &Error{Kind: KindParse, Msg: msg, Err: err}
	}

	res.Normalize()
	return res, nil
}

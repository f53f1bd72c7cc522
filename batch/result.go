package batch

import (
	"encoding/json"

	"termprobe/search"
)

type Result struct {
	Term    string         `json:"term"`
	Outcome search.Outcome `json:"outcome"`
}

type Results []Result

// JSON renders results as the `[{"term": ..., "outcome": ...}]` report.
func (rs Results) JSON() string {
	if rs == nil {
		rs = Results{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

type Summary struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
	Unknown  int `json:"unknown"`
}

func (rs Results) Summary() Summary {
	s := Summary{Total: len(rs)}
	for _, r := range rs {
		switch r.Outcome {
		case search.Found:
			s.Found++
		case search.NotFound:
			s.NotFound++
		default:
			s.Unknown++
		}
	}
	return s
}

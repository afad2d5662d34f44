package narrative

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Interpretation is the structured answer. Missing keys stay zero; a reply
// that is not a JSON object is kept verbatim in RawText.
type Interpretation struct {
	Summary          string   `json:"interpretation_summary,omitempty"`
	FavorableSites   []string `json:"favorable_sites,omitempty"`
	ProblematicSites []string `json:"problematic_sites,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	RawText          string   `json:"raw_text,omitempty"`
	Provider         string   `json:"provider,omitempty"`
	Model            string   `json:"model,omitempty"`
}

// Empty reports whether nothing usable came back.
func (i *Interpretation) Empty() bool {
	return i == nil || (i.Summary == "" && len(i.FavorableSites) == 0 && len(i.ProblematicSites) == 0 &&
		len(i.Recommendations) == 0 && i.RawText == "")
}

// ParseResponse turns model output into an Interpretation. It never fails.
func ParseResponse(text string) *Interpretation {
	body := stripFence(text)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil || raw == nil {
		return &Interpretation{RawText: strings.TrimSpace(text)}
	}
	out := &Interpretation{}
	if v, ok := raw["interpretation_summary"]; ok {
		out.Summary = strings.Join(stringList(v), "\n")
	}
	out.FavorableSites = firstList(raw, "favorable_sites", "goldilocks_sites")
	out.ProblematicSites = firstList(raw, "problematic_sites", "trouble_sites")
	if v, ok := raw["recommendations"]; ok {
		out.Recommendations = stringList(v)
	}
	return out
}

// stripFence removes a ```json fence or, failing that, trims to the outermost
// braces so chatty preambles do not hide the object.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
		return s
	}
	if strings.HasPrefix(s, "{") {
		return s
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func firstList(raw map[string]json.RawMessage, keys ...string) []string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return stringList(v)
		}
	}
	return nil
}

// stringList accepts a scalar or an array of strings and numbers.
func stringList(v json.RawMessage) []string {
	var items []any
	if err := json.Unmarshal(v, &items); err != nil {
		var one any
		if err := json.Unmarshal(v, &one); err != nil {
			return nil
		}
		items = []any{one}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(t))
		case nil:
		default:
			b, _ := json.Marshal(t)
			out = append(out, string(b))
		}
	}
	return out
}

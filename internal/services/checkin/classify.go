package checkin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/checkin/internal/httpclient"
)

// Markers providers use for "already checked in today". Other phrasings are
// classified as failures.
const (
	alreadyCheckedMarker   = "already"
	alreadyCheckedMarkerZh = "已签到"
	successMarker          = "success"
	unknownError           = "未知错误"
)

// Verdict is the classification of a single check-in reply
type Verdict struct {
	Success        bool
	AlreadyChecked bool
	Reason         string // Failure diagnostic
}

// ClassifyCheckin classifies a reply from the new check-in endpoint.
// Success requires HTTP 200 and success truthy or code == 0; a failure message
// carrying the already-checked marker is an idempotent success.
func ClassifyCheckin(resp *httpclient.Response) Verdict {
	if resp.StatusCode != http.StatusOK {
		return Verdict{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	fields, ok := decodeObject(resp.Body)
	if !ok {
		return classifyNonJSON(resp.Body)
	}

	if truthy(fields["success"]) || numberEquals(fields["code"], 0) {
		return Verdict{Success: true}
	}

	message := replyMessage(fields, "message", "msg")
	if IsAlreadyChecked(message) {
		return Verdict{Success: true, AlreadyChecked: true}
	}
	return Verdict{Reason: message}
}

// ClassifySignIn classifies a reply from the legacy sign-in endpoint, which
// reports success as ret == 1, code == 0 or success truthy.
func ClassifySignIn(resp *httpclient.Response) Verdict {
	if resp.StatusCode != http.StatusOK {
		return Verdict{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	fields, ok := decodeObject(resp.Body)
	if !ok {
		return classifyNonJSON(resp.Body)
	}

	if numberEquals(fields["ret"], 1) || numberEquals(fields["code"], 0) || truthy(fields["success"]) {
		return Verdict{Success: true}
	}
	return Verdict{Reason: replyMessage(fields, "msg", "message")}
}

// IsAlreadyChecked reports whether a provider message means today's check-in is done
func IsAlreadyChecked(message string) bool {
	return strings.Contains(strings.ToLower(message), alreadyCheckedMarker) ||
		strings.Contains(message, alreadyCheckedMarkerZh)
}

// classifyNonJSON accepts any body mentioning success; otherwise it names the
// HTML page title when there is one (WAF challenge pages land here).
func classifyNonJSON(body []byte) Verdict {
	if strings.Contains(strings.ToLower(string(body)), successMarker) {
		return Verdict{Success: true}
	}

	reason := "invalid response format"
	if title := htmlTitle(body); title != "" {
		reason = fmt.Sprintf("%s (page: %s)", reason, title)
	}
	return Verdict{Reason: reason}
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// decodeObject decodes a JSON object body; anything else is treated as non-JSON
func decodeObject(body []byte) (map[string]interface{}, bool) {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// replyMessage returns the first string field among keys, or the unknown-error text
func replyMessage(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := fields[key].(string); ok {
			return s
		}
	}
	return unknownError
}

// truthy follows loose JSON truthiness: false, 0, "", null, [] and {} are false
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []interface{}:
		return len(val) > 0
	case map[string]interface{}:
		return len(val) > 0
	}
	return true
}

// numberEquals compares a decoded JSON value with an integer; booleans count as 0/1
func numberEquals(v interface{}, want float64) bool {
	switch val := v.(type) {
	case float64:
		return val == want
	case bool:
		if val {
			return want == 1
		}
		return want == 0
	}
	return false
}

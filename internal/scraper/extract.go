package scraper

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	playerResponsePrefix = "var ytInitialPlayerResponse = "
	playerResponseMarker = "var meta"
)

// ExtractPlayerResponse returns the object assigned to ytInitialPlayerResponse in the
// inline script of a watch page. The payload ends right before the statement
// terminator that precedes the first "var meta".
func ExtractPlayerResponse(script string) (map[string]interface{}, error) {
	body := strings.ReplaceAll(script, playerResponsePrefix, "")

	end := strings.Index(body, playerResponseMarker)
	if end < 0 {
		return nil, errors.Wrapf(ErrParse, "marker %q not found in player script", playerResponseMarker)
	}
	if end == 0 {
		return nil, errors.Wrap(ErrParse, "empty player response")
	}
	_, size := utf8.DecodeLastRuneInString(body[:end])
	payload := body[:end-size]

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrapf(ErrParse, "invalid player response: %v", err)
	}
	if dec.More() {
		return nil, errors.Wrap(ErrParse, "trailing data after player response")
	}
	return doc, nil
}

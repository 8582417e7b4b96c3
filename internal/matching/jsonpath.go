package matching

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ohler55/ojg/jp"
)

// MatchJSONPath evaluates every condition against a JSON body. All must
// hold. A body that is not JSON never matches.
//
// A condition value of {"exists": true} (or false) only checks whether the
// path selects something; any other value must equal one of the selected
// values.
func MatchJSONPath(conditions map[string]any, body []byte) bool {
	if len(conditions) == 0 {
		return true
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return false
	}

	for path, expected := range conditions {
		if !matchSingleJSONPath(path, expected, data) {
			return false
		}
	}
	return true
}

func matchSingleJSONPath(path string, expected, data any) bool {
	expr, err := jp.ParseString(path)
	if err != nil {
		return false
	}
	results := expr.Get(data)

	if exists, ok := existenceCheck(expected); ok {
		return exists == (len(results) > 0)
	}

	for _, result := range results {
		if valuesEqual(result, expected) {
			return true
		}
	}
	return false
}

// existenceCheck recognizes {"exists": bool}.
func existenceCheck(expected any) (exists, ok bool) {
	m, isMap := expected.(map[string]any)
	if !isMap || len(m) != 1 {
		return false, false
	}
	b, isBool := m["exists"].(bool)
	return b, isBool
}

// valuesEqual compares a selected JSON value with a condition value. Numbers
// compare numerically across Go numeric types since JSON decodes to float64.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	an, aok := toFloat64(actual)
	en, eok := toFloat64(expected)
	if aok && eok {
		return an == en
	}
	return false
}

// ValidateJSONPath checks every expression in conditions at declaration
// time.
func ValidateJSONPath(conditions map[string]any) error {
	for path := range conditions {
		if _, err := jp.ParseString(path); err != nil {
			return fmt.Errorf("invalid JSONPath expression %q: %w", path, err)
		}
	}
	return nil
}

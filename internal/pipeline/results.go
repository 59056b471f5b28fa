package pipeline

import (
	"encoding/json"
	"sort"
)

// ToJSON serializes a single result to indented JSON.
func ToJSON(res Result) (string, error) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SortByIndex orders results by their image index in place.
func SortByIndex(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ImageIndex < results[j].ImageIndex
	})
}

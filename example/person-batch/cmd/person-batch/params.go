package main

import (
	"fmt"
	"strconv"
	"strings"

	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

// ParseJobParameters turns key=value pairs into JobParameters. Integers become int64,
// "true" and "false" become bool, anything else stays a string.
func ParseJobParameters(pairs []string) (model.JobParameters, error) {
	params := model.NewJobParameters()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return model.JobParameters{}, fmt.Errorf("invalid job parameter %q: expected key=value", pair)
		}
		params.Put(key, parseValue(value))
	}
	return params, nil
}

func parseValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

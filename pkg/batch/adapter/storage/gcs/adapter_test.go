package gcs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/gcs"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name          string
		location      string
		defaultBucket string
		bucket        string
		object        string
		wantErr       bool
	}{
		{"full", "gs://exports/out/test-output.csv", "", "exports", "out/test-output.csv", false},
		{"default bucket", "gs:///test.csv", "batch-data", "batch-data", "test.csv", false},
		{"no bucket no default", "gs:///test.csv", "", "", "", true},
		{"missing object", "gs://exports/", "", "", "", true},
		{"wrong scheme", "file:///tmp/x.csv", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := gcs.ParseLocation(tt.location, tt.defaultBucket)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

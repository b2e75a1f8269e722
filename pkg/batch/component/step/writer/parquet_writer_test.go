package writer_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	pqreader "github.com/xitongsys/parquet-go/reader"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
	localStorage "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

type personRecord struct {
	ID      int64  `parquet:"name=id, type=INT64"`
	Name    string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Age     int32  `parquet:"name=age, type=INT32"`
	Address string `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func readParquet(t *testing.T, path string) []personRecord {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := pqreader.NewParquetReader(fr, new(personRecord), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]personRecord, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func TestParquetItemWriter_WritesOnePartPerChunkAndPartition(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	resolver := storageAdapter.NewResolver(localStorage.NewProvider(storageConfig.StorageConfig{BaseDir: dir}))

	w, err := writer.NewParquetItemWriter[personRecord]("exportWriter", map[string]interface{}{
		"outputBaseDir":   "export",
		"compressionType": "NONE",
	}, resolver, nil, func(p personRecord) (string, error) {
		return "address=" + p.Address, nil
	})
	require.NoError(t, err)

	ec := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, nil, []personRecord{
		{ID: 1, Name: "foo1", Age: 11, Address: "Tokyo"},
		{ID: 2, Name: "foo2", Age: 12, Address: "Osaka"},
		{ID: 3, Name: "foo3", Age: 13, Address: "Tokyo"},
	}))
	require.NoError(t, w.Write(ctx, nil, []personRecord{{ID: 4, Name: "foo4", Age: 14, Address: "Tokyo"}}))
	require.NoError(t, w.Close(ctx))

	seq, _ := ec.GetInt("exportWriter.part")
	assert.Equal(t, 2, seq)

	tokyo := readParquet(t, filepath.Join(dir, "export", "address=Tokyo", "part-00000.parquet"))
	assert.Equal(t, []personRecord{
		{ID: 1, Name: "foo1", Age: 11, Address: "Tokyo"},
		{ID: 3, Name: "foo3", Age: 13, Address: "Tokyo"},
	}, tokyo)
	osaka := readParquet(t, filepath.Join(dir, "export", "address=Osaka", "part-00000.parquet"))
	assert.Len(t, osaka, 1)
	assert.Len(t, readParquet(t, filepath.Join(dir, "export", "address=Tokyo", "part-00001.parquet")), 1)
}

func TestParquetItemWriter_Validation(t *testing.T) {
	resolver := storageAdapter.NewResolver()
	_, err := writer.NewParquetItemWriter[personRecord]("w", map[string]interface{}{}, resolver, nil, nil)
	assert.ErrorContains(t, err, "outputBaseDir")

	_, err = writer.NewParquetItemWriter[personRecord]("w", map[string]interface{}{
		"outputBaseDir":   "out",
		"compressionType": "LZ4",
	}, resolver, nil, nil)
	assert.ErrorContains(t, err, "LZ4")
}

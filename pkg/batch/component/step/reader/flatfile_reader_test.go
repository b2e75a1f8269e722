package reader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

type person struct {
	ID      int
	Name    string
	Age     int
	Address string
}

func mapPerson(fs reader.FieldSet) (person, error) {
	id, err := fs.GetInt("id")
	if err != nil {
		return person{}, err
	}
	age, err := fs.GetInt("age")
	if err != nil {
		return person{}, err
	}
	return person{ID: id, Name: fs.Get("name"), Age: age, Address: fs.Get("address")}, nil
}

const tenPeople = `id,name,age,address
1,foo1,11,Tokyo
2,foo2,12,Osaka
3,foo3,13,Nagoya
4,foo4,14,Sapporo
5,foo5,15,Fukuoka
6,foo6,16,Kobe
7,foo7,17,Kyoto
8,foo8,18,Sendai
9,foo9,19,Chiba
10,foo10,20,Nara
`

func newReader(t *testing.T, content string) *reader.FlatFileItemReader[person] {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.csv"), []byte(content), 0o644))

	resolver := storageAdapter.NewResolver(local.NewProvider(storageConfig.StorageConfig{BaseDir: dir}))
	r, err := reader.NewFlatFileItemReaderFromProperties[person]("personReader", map[string]interface{}{
		"resource": "test.csv",
		"names":    []string{"id", "name", "age", "address"},
	}, resolver, mapPerson)
	require.NoError(t, err)
	return r
}

func readAll(t *testing.T, r *reader.FlatFileItemReader[person]) ([]person, error) {
	t.Helper()
	ctx := context.Background()
	var out []person
	for {
		p, err := r.Read(ctx)
		if err == port.ErrNoMoreItems {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
}

func TestFlatFileItemReader_ReadsAllRowsAfterHeader(t *testing.T) {
	r := newReader(t, tenPeople)
	require.NoError(t, r.Open(context.Background(), model.NewExecutionContext()))
	defer r.Close(context.Background())

	people, err := readAll(t, r)
	require.NoError(t, err)
	require.Len(t, people, 10)
	assert.Equal(t, person{ID: 1, Name: "foo1", Age: 11, Address: "Tokyo"}, people[0])
	assert.Equal(t, person{ID: 10, Name: "foo10", Age: 20, Address: "Nara"}, people[9])

	// End of stream is sticky.
	_, err = r.Read(context.Background())
	assert.Equal(t, port.ErrNoMoreItems, err)
}

func TestFlatFileItemReader_StripsBOM(t *testing.T) {
	r := newReader(t, "\xEF\xBB\xBFid,name,age,address\n1,foo1,11,Tokyo\n")
	require.NoError(t, r.Open(context.Background(), model.NewExecutionContext()))
	defer r.Close(context.Background())

	people, err := readAll(t, r)
	require.NoError(t, err)
	assert.Equal(t, []person{{ID: 1, Name: "foo1", Age: 11, Address: "Tokyo"}}, people)
}

func TestFlatFileItemReader_FieldCountMismatch(t *testing.T) {
	r := newReader(t, "id,name,age,address\n1,foo1,11,Tokyo\n2,foo2\n")
	require.NoError(t, r.Open(context.Background(), model.NewExecutionContext()))
	defer r.Close(context.Background())

	people, err := readAll(t, r)
	require.Error(t, err)
	assert.Len(t, people, 1)

	var pe *exception.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, "2,foo2", pe.Input)
}

func TestFlatFileItemReader_MapperErrorIsParseError(t *testing.T) {
	r := newReader(t, "id,name,age,address\nx,foo1,11,Tokyo\n")
	require.NoError(t, r.Open(context.Background(), model.NewExecutionContext()))
	defer r.Close(context.Background())

	_, err := r.Read(context.Background())
	assert.True(t, exception.IsParseError(err))
}

func TestFlatFileItemReader_MissingResource(t *testing.T) {
	resolver := storageAdapter.NewResolver(local.NewProvider(storageConfig.StorageConfig{BaseDir: t.TempDir()}))
	r, err := reader.NewFlatFileItemReader[person]("personReader", reader.FlatFileReaderConfig{
		Resource: "missing.csv",
		Names:    []string{"id", "name", "age", "address"},
	}, resolver, mapPerson)
	require.NoError(t, err)

	err = r.Open(context.Background(), model.NewExecutionContext())
	assert.True(t, exception.IsResourceError(err))
	assert.ErrorIs(t, err, storageAdapter.ErrResourceNotFound)
}

func TestFlatFileItemReader_Skip(t *testing.T) {
	r := newReader(t, tenPeople)
	ctx := context.Background()
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	require.NoError(t, r.Skip(ctx, 7))
	people, err := readAll(t, r)
	require.NoError(t, err)
	require.Len(t, people, 3)
	assert.Equal(t, 8, people[0].ID)

	// Skipping past the end is not an error.
	assert.NoError(t, r.Skip(ctx, 5))
}

func TestNewFlatFileItemReader_Validation(t *testing.T) {
	resolver := storageAdapter.NewResolver()
	names := []string{"id"}

	_, err := reader.NewFlatFileItemReader[person]("r", reader.FlatFileReaderConfig{Resource: "a.csv"}, resolver, mapPerson)
	assert.ErrorContains(t, err, "field names")

	_, err = reader.NewFlatFileItemReader[person]("r", reader.FlatFileReaderConfig{Resource: "a.csv", Names: names, Encoding: "Shift_JIS"}, resolver, mapPerson)
	assert.ErrorContains(t, err, "encoding")

	_, err = reader.NewFlatFileItemReader[person]("r", reader.FlatFileReaderConfig{Resource: "a.csv", Names: names, Delimiter: "::"}, resolver, mapPerson)
	assert.ErrorContains(t, err, "delimiter")

	_, err = reader.NewFlatFileItemReader[person]("r", reader.FlatFileReaderConfig{Resource: "a.csv", Names: names}, resolver, nil)
	assert.ErrorContains(t, err, "mapper")
}

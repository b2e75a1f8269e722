package writer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
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

func extractPerson(p person) ([]string, error) {
	if p.Name == "" {
		return nil, errors.New("name is required")
	}
	return []string{strconv.Itoa(p.ID), p.Name, strconv.Itoa(p.Age), p.Address}, nil
}

func people(from, to int) []person {
	var out []person
	for i := from; i <= to; i++ {
		out = append(out, person{ID: i, Name: "foo" + strconv.Itoa(i), Age: 10 + i, Address: "Tokyo, Minato"})
	}
	return out
}

const footer = "------------------\n"

func newWriter(t *testing.T, dir string, appendMode bool) *writer.FlatFileItemWriter[person] {
	t.Helper()
	resolver := storageAdapter.NewResolver(local.NewProvider(storageConfig.StorageConfig{BaseDir: dir}))
	w, err := writer.NewFlatFileItemWriterFromProperties[person]("personWriter", map[string]interface{}{
		"resource":   "output/test-output.csv",
		"header":     "id,name,age,address",
		"footer":     footer,
		"appendMode": appendMode,
	}, resolver, extractPerson)
	require.NoError(t, err)
	return w
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestFlatFileItemWriter_AppendModeAddsHeaderRowsAndFooter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "output", "test-output.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
	require.NoError(t, os.WriteFile(out, []byte("existing line\n"), 0o644))

	w := newWriter(t, dir, true)
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, nil, people(1, 3)))
	require.NoError(t, w.Write(ctx, nil, people(4, 5)))
	require.NoError(t, w.Close(ctx))

	lines := readLines(t, out)
	require.Len(t, lines, 1+1+5+1)
	assert.Equal(t, "existing line", lines[0])
	assert.Equal(t, "id,name,age,address", lines[1])
	assert.Equal(t, `1,foo1,11,"Tokyo, Minato"`, lines[2])
	assert.Equal(t, strings.TrimSuffix(footer, "\n"), lines[7])
}

func TestFlatFileItemWriter_AppendModeTerminatesUnfinishedLastLine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "output", "test-output.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o755))
	require.NoError(t, os.WriteFile(out, []byte("existing line"), 0o644))

	w := newWriter(t, dir, true)
	ec := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, nil, people(1, 2)))
	require.NoError(t, w.Close(ctx))

	lines := readLines(t, out)
	require.Len(t, lines, 1+1+2+1)
	assert.Equal(t, "existing line", lines[0])
	assert.Equal(t, "id,name,age,address", lines[1])
}

func TestFlatFileItemWriter_FailedBatchLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ec := model.NewExecutionContext()

	w := newWriter(t, dir, false)
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, nil, people(1, 2)))
	committed, _ := ec.GetInt("personWriter.position")

	batch := append(people(3, 4), person{ID: 5})
	err := w.Write(ctx, nil, batch)
	assert.True(t, exception.IsWriteError(err))
	pos, _ := ec.GetInt("personWriter.position")
	assert.Equal(t, committed, pos)
	require.NoError(t, w.Close(ctx))

	lines := readLines(t, filepath.Join(dir, "output", "test-output.csv"))
	assert.Equal(t, []string{
		"id,name,age,address",
		`1,foo1,11,"Tokyo, Minato"`,
		`2,foo2,12,"Tokyo, Minato"`,
		strings.TrimSuffix(footer, "\n"),
	}, lines)
}

func TestFlatFileItemWriter_RestartTruncatesToCommittedPosition(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "output", "test-output.csv")
	ec := model.NewExecutionContext()

	first := newWriter(t, dir, false)
	require.NoError(t, first.Open(ctx, ec))
	require.NoError(t, first.Write(ctx, nil, people(1, 2)))
	saved := ec.Copy()
	// Written but never committed.
	require.NoError(t, first.Write(ctx, nil, people(3, 4)))
	require.NoError(t, first.Close(ctx))

	second := newWriter(t, dir, false)
	require.NoError(t, second.Open(ctx, saved))
	require.NoError(t, second.Write(ctx, nil, people(3, 4)))
	require.NoError(t, second.Close(ctx))

	lines := readLines(t, out)
	require.Len(t, lines, 1+4+1)
	assert.Equal(t, "id,name,age,address", lines[0])
	assert.Equal(t, `3,foo3,13,"Tokyo, Minato"`, lines[3])
	assert.Equal(t, strings.TrimSuffix(footer, "\n"), lines[5])
}

func TestFlatFileItemWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	resolver := storageAdapter.NewResolver(local.NewProvider(storageConfig.StorageConfig{BaseDir: dir}))
	names := []string{"id", "name", "age", "address"}

	w, err := writer.NewFlatFileItemWriter[person]("w", writer.FlatFileWriterConfig{
		Resource: "roundtrip.csv",
		Header:   strings.Join(names, ","),
	}, resolver, extractPerson)
	require.NoError(t, err)
	written := people(1, 25)
	written[3].Address = `He said "hi"`
	require.NoError(t, w.Open(ctx, model.NewExecutionContext()))
	require.NoError(t, w.Write(ctx, nil, written))
	require.NoError(t, w.Close(ctx))

	r, err := reader.NewFlatFileItemReader[person]("r", reader.FlatFileReaderConfig{
		Resource:    "roundtrip.csv",
		Names:       names,
		LinesToSkip: 1,
	}, resolver, func(fs reader.FieldSet) (person, error) {
		id, err := fs.GetInt("id")
		if err != nil {
			return person{}, err
		}
		age, err := fs.GetInt("age")
		if err != nil {
			return person{}, err
		}
		return person{ID: id, Name: fs.Get("name"), Age: age, Address: fs.Get("address")}, nil
	})
	require.NoError(t, err)
	require.NoError(t, r.Open(ctx, model.NewExecutionContext()))
	defer r.Close(ctx)

	var got []person
	for {
		p, err := r.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) {
			break
		}
		require.NoError(t, err)
		got = append(got, p)
	}
	assert.Equal(t, written, got)
}

func TestFlatFileItemWriter_WriteBeforeOpen(t *testing.T) {
	w := newWriter(t, t.TempDir(), false)
	err := w.Write(context.Background(), nil, people(1, 1))
	assert.True(t, exception.IsWriteError(err))
}

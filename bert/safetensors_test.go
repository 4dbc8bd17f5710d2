package bert_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/minisearch"
	"github.com/fwojciec/minisearch/bert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeRawSafetensors writes a safetensors file from a literal header and data.
func writeRawSafetensors(t *testing.T, header string, data []byte) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(header))))
	buf.WriteString(header)
	buf.Write(data)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestSafetensors(t *testing.T) {
	t.Parallel()

	t.Run("round trips float32 tensors", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "model.safetensors")
		in := map[string]bert.Tensor{
			"a": {Shape: []int{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
			"b": {Shape: []int{1}, Data: []float32{-0.5}},
		}
		require.NoError(t, bert.WriteSafetensors(path, in))

		out, err := bert.ReadSafetensors(path)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("decodes half precision tensors", func(t *testing.T) {
		t.Parallel()

		header := `{"__metadata__":{"format":"pt"},` +
			`"h":{"dtype":"F16","shape":[2],"data_offsets":[0,4]},` +
			`"b":{"dtype":"BF16","shape":[1],"data_offsets":[4,6]}}`
		data := []byte{
			0x00, 0x3E, // 1.5
			0x00, 0xC0, // -2
			0x40, 0x40, // 3 in bfloat16
		}

		out, err := bert.ReadSafetensors(writeRawSafetensors(t, header, data))
		require.NoError(t, err)
		assert.Equal(t, []float32{1.5, -2}, out["h"].Data)
		assert.Equal(t, []float32{3}, out["b"].Data)
		assert.NotContains(t, out, "__metadata__")
	})

	t.Run("rejects unsupported dtype", func(t *testing.T) {
		t.Parallel()

		header := `{"i":{"dtype":"I64","shape":[1],"data_offsets":[0,8]}}`
		_, err := bert.ReadSafetensors(writeRawSafetensors(t, header, make([]byte, 8)))
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})

	t.Run("rejects data offsets past the end", func(t *testing.T) {
		t.Parallel()

		header := `{"f":{"dtype":"F32","shape":[4],"data_offsets":[0,16]}}`
		_, err := bert.ReadSafetensors(writeRawSafetensors(t, header, make([]byte, 8)))
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})

	t.Run("rejects truncated file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "model.safetensors")
		require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))
		_, err := bert.ReadSafetensors(path)
		assert.Equal(t, minisearch.EINVALID, minisearch.ErrorCode(err))
	})
}

package headerscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdklens/internal/registry"
)

const sampleHeader = `#ifndef _LIBPAD_H_
#define _LIBPAD_H_

#define PAD_MAX 2

enum PadState {
	PAD_STATE_DISCONN,
	PAD_STATE_STABLE
};

long PadInit(long mode);

#endif
`

func writeHeader(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScanFile_FunctionsEnumsMacros(t *testing.T) {
	path := writeHeader(t, "libpad.h", sampleHeader)

	records, err := ScanFile(path)
	require.NoError(t, err)

	byToken := make(map[registry.Token]registry.Kind)
	for _, r := range records {
		byToken[r.Token] = r.Kind
	}
	assert.Equal(t, registry.KindFunction, byToken["PadInit"])
	assert.Equal(t, registry.KindEnum, byToken["PAD_STATE_DISCONN"])
	assert.Equal(t, registry.KindEnum, byToken["PAD_STATE_STABLE"])
	assert.Equal(t, registry.KindLiteral, byToken["PAD_MAX"])
}

func TestScanFile_FunctionDeclarationText(t *testing.T) {
	path := writeHeader(t, "libpad.h", sampleHeader)

	records, err := ScanFile(path)
	require.NoError(t, err)

	for _, r := range records {
		if r.Token == "PadInit" {
			assert.Contains(t, r.Declaration, "long PadInit(long mode);")
			assert.Equal(t, "libpad.h", r.Header)
			return
		}
	}
	t.Fatal("PadInit not found")
}

func TestScan_DeduplicatesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.h"), []byte("#define PAD_MAX 2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.h"), []byte("#define PAD_MAX 2\nlong PadStop(void);\n"), 0o644))

	records, err := Scan([]string{dir})
	require.NoError(t, err)

	tokens := make([]string, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, string(r.Token))
	}
	assert.Equal(t, []string{"PAD_MAX", "PadStop"}, tokens)
}

package asset

import (
	"bytes"

	"github.com/ulikunitz/xz/lzma"
)

// compress writes the classic .lzma container (the format LZMA-JS expects),
// default preset.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package qq

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// fileVersion tags the on-disk transfer-function layout.
const fileVersion = 1

type transferFile struct {
	Version  int               `msgpack:"version"`
	Function *TransferFunction `msgpack:"function"`
}

// Save writes the transfer function to path in MessagePack form, wrapped
// in a version-tagged envelope.
func (tf *TransferFunction) Save(path string) error {
	data, err := msgpack.Marshal(&transferFile{Version: fileVersion, Function: tf})
	if err != nil {
		return fmt.Errorf("encoding transfer function: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing transfer function: %w", err)
	}
	return nil
}

// Load reads a transfer function saved by Save.
func Load(path string) (*TransferFunction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transfer function: %w", err)
	}
	var f transferFile
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding transfer function: %w", err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("transfer function file version %d not supported", f.Version)
	}
	if err := validateTransfer(f.Function); err != nil {
		return nil, fmt.Errorf("loaded transfer function invalid: %w", err)
	}
	return f.Function, nil
}

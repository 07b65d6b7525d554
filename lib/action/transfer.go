/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package action

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
)

// localFS is the filesystem transferData stages files on before handing
// them to Connection.PutFile. It is the OS filesystem, since PutFile
// implementations read the staged file by its local path.
var localFS afero.Fs = afero.NewOsFs()

// transferFile delegates straight to the connection's put_file.
func (b *Base) transferFile(ctx context.Context, localPath, remotePath string) error {
	return b.Connection.PutFile(ctx, localPath, remotePath)
}

// transferData writes data (a []byte, or JSON-encoded when it's a
// map[string]any) to a local scratch file and transfers it to remotePath,
// unlinking the scratch file whether or not the transfer succeeded.
func (b *Base) transferData(ctx context.Context, remotePath string, data interface{}) error {
	var payload []byte
	switch v := data.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failure encoding module data for transfer: %w", err)
		}
		payload = encoded
	default:
		return fmt.Errorf("unsupported transferData payload type %T", data)
	}

	tmpFile, err := afero.TempFile(localFS, "", "rexec-transfer-")
	if err != nil {
		return fmt.Errorf("failure creating temporary file for transfer: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer localFS.Remove(tmpPath)

	if _, err := tmpFile.Write(payload); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failure writing module data to temporary file for transfer: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failure closing temporary file for transfer: %w", err)
	}

	return b.transferFile(ctx, tmpPath, remotePath)
}

// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirName is the hidden directory agentcored uses for on-disk
// state, e.g. the default chromem vector persistence path.
const StateDirName = ".agentcore"

// EnsureStateDir ensures the state directory exists at the given base path.
// If basePath is empty or ".", it creates ./.agentcore in the current
// directory. Otherwise, it creates {basePath}/.agentcore.
//
// Returns the full path to the state directory and any error.
func EnsureStateDir(basePath string) (string, error) {
	var dir string
	if basePath == "" || basePath == "." {
		dir = StateDirName
	} else {
		dir = filepath.Join(basePath, StateDirName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory at '%s': %w", StateDirName, dir, err)
	}

	return dir, nil
}

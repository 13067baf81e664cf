// Copyright 2025 The dpforge Authors
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
//
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"github.com/dpforge/dpforge/internal/naming"
)

// TagLatestResult reports the applied alias.
type TagLatestResult struct {
	Image naming.Reference
	Alias naming.Reference
}

// TagLatest aliases the result image under the "latest" tag,
// overwriting any previous alias.
func (b *Exec) TagLatest() (TagLatestResult, error) {
	var res TagLatestResult

	names, err := b.resolveNames()
	if err != nil {
		return res, err
	}
	res.Image = names.Result

	alias, err := b.runner.TagLatest(names)
	if err != nil {
		return res, err
	}
	res.Alias = alias
	return res, nil
}

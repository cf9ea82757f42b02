//
// Copyright (c) 2020-2024 Sketchburn Contributors
// All rights reserved
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
package common

import (
	"github.com/golang/glog"
)

// ProgressFunc receives upload progress: percent is 0-100 and never
// decreases within one upload, status is a short phase label.
type ProgressFunc func(percent int, status string)

// NopProgress is used where the caller did not supply a sink.
func NopProgress(percent int, status string) {}

// MonotonicProgress wraps p so that out-of-order percentages from a strategy
// can never reach the caller decreasing.
func MonotonicProgress(p ProgressFunc) ProgressFunc {
	if p == nil {
		p = NopProgress
	}
	last := 0
	return func(percent int, status string) {
		if percent < last {
			glog.V(1).Infof("progress went backwards (%d < %d), clamping", percent, last)
			percent = last
		}
		if percent > 100 {
			percent = 100
		}
		last = percent
		p(percent, status)
	}
}

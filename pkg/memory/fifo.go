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

package memory

import (
	"context"

	"github.com/flowpilot/agentcore/pkg/event"
)

// FIFOWindow keeps the most recent N messages, in insertion order. It is
// the simplest of the three eviction strategies and the config default.
type FIFOWindow struct {
	base
	maxMessages int
}

// NewFIFOWindow builds a FIFOWindow retaining at most maxMessages entries.
func NewFIFOWindow(maxMessages int) *FIFOWindow {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &FIFOWindow{maxMessages: maxMessages}
}

func (f *FIFOWindow) AddMessage(_ context.Context, m event.Message) error {
	f.append(m)
	f.evict()
	return nil
}

// evict trims from the front while respecting the tool-call pairing
// invariant: it never cuts between an Assistant tool-call message and its
// Tool responses.
func (f *FIFOWindow) evict() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.messages) <= f.maxMessages {
		return
	}
	cut := len(f.messages) - f.maxMessages
	// Never cut a Tool message away from its originating Assistant
	// tool-call message: if messages[cut] answers a call issued earlier
	// than cut, push cut back to include that Assistant message.
	for cut > 0 && f.messages[cut].IsToolResponse() {
		boundary := -1
		for i := cut - 1; i >= 0; i-- {
			if f.messages[i].HasToolCalls() {
				boundary = i
				break
			}
		}
		if boundary < 0 || boundary >= cut {
			break
		}
		cut = boundary
	}
	f.messages = f.messages[cut:]
}

func (f *FIFOWindow) GetContext() []event.Message {
	return f.snapshot()
}

func (f *FIFOWindow) Clear() {
	f.clear()
}

func (f *FIFOWindow) Stats() Stats {
	msgs := f.snapshot()
	return Stats{
		MessageCount:     len(msgs),
		EstimatedTokens:  approxTokens(nil, msgs),
		EvictionStrategy: "fifo_window",
	}
}

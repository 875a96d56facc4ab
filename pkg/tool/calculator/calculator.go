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

// Package calculator implements the built-in arithmetic tool.
package calculator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/flowpilot/agentcore/pkg/tool"
)

const name = "calculator"

var schema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"operation": {"type": "string", "enum": ["add", "subtract", "multiply", "divide", "power", "sqrt"]},
		"a": {"type": "number"},
		"b": {"type": "number", "description": "unused for sqrt"}
	},
	"required": ["operation", "a"]
}`)

// Calculator evaluates a single arithmetic operation per call.
type Calculator struct{}

// New builds the calculator tool.
func New() *Calculator { return &Calculator{} }

func (c *Calculator) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        name,
		Description: "Performs a single arithmetic operation: add, subtract, multiply, divide, power, or sqrt.",
		InputSchema: schema,
	}
}

type request struct {
	Operation string  `json:"operation"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
}

func (c *Calculator) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var req request
	if err := json.Unmarshal(args, &req); err != nil {
		return "", tool.NewError(name, fmt.Sprintf("invalid arguments: %s", err))
	}

	var result float64
	switch req.Operation {
	case "add":
		result = req.A + req.B
	case "subtract":
		result = req.A - req.B
	case "multiply":
		result = req.A * req.B
	case "divide":
		if req.B == 0 {
			return "", tool.NewError(name, "division by zero")
		}
		result = req.A / req.B
	case "power":
		result = math.Pow(req.A, req.B)
	case "sqrt":
		if req.A < 0 {
			return "", tool.NewError(name, "square root of negative number")
		}
		result = math.Sqrt(req.A)
	default:
		return "", tool.NewError(name, fmt.Sprintf("unknown operation %q", req.Operation))
	}

	return formatResult(result), nil
}

// formatResult renders whole numbers without a decimal point and
// everything else at 6-digit precision with trailing zeros trimmed.
func formatResult(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

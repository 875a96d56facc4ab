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

package observability

import "time"

// Span and attribute names used by HTTPMiddleware. agentcored has exactly
// one instrumented boundary today: the sseserver HTTP surface.
const (
	SpanHTTPRequest = "agentcore.http_request"

	AttrServiceName      = "service.name"
	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"
	AttrErrorType        = "error.type"
)

const (
	// DefaultServiceName identifies agentcored in trace resources.
	DefaultServiceName = "agentcore"

	// DefaultSamplingRate traces every request unless overridden.
	DefaultSamplingRate = 1.0

	// DefaultOTLPEndpoint matches a local OTel Collector's default gRPC port.
	DefaultOTLPEndpoint = "localhost:4317"

	// DefaultMetricsPath is where the Prometheus handler is mounted.
	DefaultMetricsPath = "/metrics"

	// DefaultExportTimeout bounds one batch export call.
	DefaultExportTimeout = 10 * time.Second
)

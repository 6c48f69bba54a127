// Copyright 2025 Poiesic Systems
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


// Package answer provides retrieval-augmented answering over a ready job's
// vector index.
//
// The Answerer type implements the ask path: embed the query (cache first),
// retrieve the nearest segments, assemble a bounded excerpt context in
// relevance-then-index order, and generate a grounded answer. Answers are
// cached under a prompt hash covering the job, the normalized query, the
// retrieved segment set and the prompt template version, so repeating a
// question costs no second generation call.
package answer

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


// Package ai provides abstractions for AI services used in Mediamind.
//
// This package defines interfaces for the three externally hosted model
// services the pipeline depends on: media transcription, text embeddings and
// answer generation. It follows the dependency inversion principle, allowing
// the pipeline stages and the answering layer to depend on abstractions
// rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around four key interfaces:
//
//   - Transcriber: Converts media files into timed transcripts
//   - Embedder: Generates vector embeddings from text
//   - AnswerGenerator: Produces grounded answers from retrieved excerpts
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Production constructors return interfaces to enforce abstraction; mock
// constructors return concrete types so tests can reach call counters and
// behavior-injection fields.
package ai

// internal/appconfig/schema.go
package appconfig

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON schema the config file must satisfy. It catches
// typos (unknown keys, wrong types) before the decoder silently drops them.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "host": {"type": "string"},
    "port": {"type": "integer", "minimum": 0, "maximum": 65535},
    "debug": {"type": "boolean"},
    "logFile": {"type": "string"},
    "timeout": {"type": "integer", "minimum": 0},
    "embedding": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "baseURL": {"type": "string"},
        "model": {"type": "string"},
        "dimension": {"type": "integer", "minimum": 1},
        "apiKeyEnv": {"type": "string"},
        "batchSize": {"type": "integer", "minimum": 1}
      }
    },
    "chunking": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "chunkSize": {"type": "integer", "minimum": 1},
        "chunkOverlap": {"type": "integer", "minimum": 0}
      }
    },
    "retrieval": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "retrievalLimit": {"type": "integer", "minimum": 1},
        "rerankLimit": {"type": "integer", "minimum": 1},
        "contextTokenCap": {"type": "integer", "minimum": 0}
      }
    },
    "vectorStore": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "backend": {"type": "string", "enum": ["pinecone", "redis", "memory"]},
        "indexName": {"type": "string"},
        "metric": {"type": "string"},
        "pineconeHost": {"type": "string"},
        "redisAddr": {"type": "string"},
        "redisPassword": {"type": "string"},
        "redisDB": {"type": "integer", "minimum": 0}
      }
    },
    "generator": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "baseURL": {"type": "string"},
        "model": {"type": "string"},
        "maxTokens": {"type": "integer", "minimum": 1}
      }
    },
    "reranker": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "baseURL": {"type": "string"},
        "model": {"type": "string"}
      }
    },
    "ingest": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "allowedExtensions": {"type": "string"},
        "maxUploadMB": {"type": "integer", "minimum": 1},
        "tempDir": {"type": "string"},
        "statusDBPath": {"type": "string"}
      }
    }
  }
}`

// ValidateSchema checks raw config file bytes against the embedded schema.
func ValidateSchema(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(problems, "; "))
}

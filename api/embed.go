// Package api embeds the HTTP and event contracts of the task engine
package api

import _ "embed"

// OpenAPISpec is the REST contract served by cmd/api
//
//go:embed openapi.yaml
var OpenAPISpec []byte

// AsyncAPISpec describes the CloudEvents published to Kafka
//
//go:embed asyncapi.yaml
var AsyncAPISpec []byte

package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Both external APIs are duck-typed JSON over HTTP; payloads are validated
// against these schemas at the boundary so malformed responses are rejected
// instead of trusted.

// RaceTableSchema defines the JSON schema for motorsport-results season and
// result responses.
var RaceTableSchema = `{
	"type": "object",
	"properties": {
		"MRData": {
			"type": "object",
			"properties": {
				"RaceTable": {
					"type": "object",
					"properties": {
						"season": {"type": "string"},
						"Races": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"season": {"type": "string", "pattern": "^\\d{4}$"},
									"round": {"type": "string", "pattern": "^\\d+$"},
									"raceName": {"type": "string", "minLength": 1},
									"date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
									"time": {"type": "string"},
									"Circuit": {
										"type": "object",
										"properties": {
											"circuitName": {"type": "string", "minLength": 1}
										},
										"required": ["circuitName"]
									},
									"Results": {
										"type": "array",
										"items": {
											"type": "object",
											"properties": {
												"position": {"type": "string", "pattern": "^\\d+$"},
												"Driver": {
													"type": "object",
													"properties": {
														"givenName": {"type": "string"},
														"familyName": {"type": "string"}
													},
													"required": ["givenName", "familyName"]
												}
											},
											"required": ["position", "Driver"]
										}
									}
								},
								"required": ["season", "round", "raceName", "date", "Circuit"]
							}
						}
					},
					"required": ["Races"]
				}
			},
			"required": ["RaceTable"]
		}
	},
	"required": ["MRData"]
}`

// VideoSearchSchema defines the JSON schema for video-platform search
// responses.
var VideoSearchSchema = `{
	"type": "object",
	"properties": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {
						"type": "object",
						"properties": {
							"videoId": {"type": "string", "minLength": 1}
						},
						"required": ["videoId"]
					},
					"snippet": {
						"type": "object",
						"properties": {
							"title": {"type": "string", "minLength": 1},
							"channelId": {"type": "string"},
							"channelTitle": {"type": "string"},
							"publishedAt": {"type": "string"}
						},
						"required": ["title"]
					}
				},
				"required": ["id", "snippet"]
			}
		}
	},
	"required": ["items"]
}`

// ValidateRaceTableResponse validates a results-API payload against the
// race table schema.
func ValidateRaceTableResponse(jsonData []byte) error {
	return validateAgainst(RaceTableSchema, jsonData)
}

// ValidateVideoSearchResponse validates a video-platform search payload
// against the search schema.
func ValidateVideoSearchResponse(jsonData []byte) error {
	return validateAgainst(VideoSearchSchema, jsonData)
}

// validateAgainst validates a JSON document against a schema string.
func validateAgainst(schema string, jsonData []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(jsonData)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate JSON schema: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("JSON validation failed: %s", strings.Join(errorMessages, "; "))
	}

	return nil
}

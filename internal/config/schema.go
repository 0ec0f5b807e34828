package config

// schema is the JSON Schema the configuration document is validated
// against before being unmarshaled.
const schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "filescand configuration",
  "type": "object",
  "properties": {
    "limits": {
      "type": "object",
      "properties": {
        "time_to_live": {"type": "integer", "minimum": 0},
        "max_files": {"type": "integer", "minimum": 0},
        "distribution": {"type": "integer", "minimum": 1},
        "scanner": {"type": "integer", "minimum": 1},
        "max_depth": {"type": "integer", "minimum": 0}
      },
      "required": ["distribution", "max_depth"]
    },
    "tasting": {
      "type": "object",
      "properties": {
        "content_type_db": {"type": "string"},
        "rules": {"type": "string"}
      }
    },
    "scanners": {
      "type": "object",
      "additionalProperties": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "positive": {"$ref": "#/$defs/condition"},
            "negative": {"$ref": "#/$defs/condition"},
            "priority": {"type": "integer"},
            "options": {"type": "object"}
          }
        }
      }
    }
  },
  "required": ["limits"],
  "$defs": {
    "condition": {
      "type": "object",
      "properties": {
        "flavors": {"type": "array", "items": {"type": "string"}},
        "filename": {"type": "string"},
        "source": {"type": "string"}
      }
    }
  }
}`

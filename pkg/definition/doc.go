// Package definition reads expectation definition files: JSON or YAML
// documents holding one definition or a list of them, in the format
// produced by traffic recorders.
//
//	[
//	  {
//	    "scope": "https://api.example.test:443",
//	    "method": "GET",
//	    "path": "/users/1",
//	    "status": 200,
//	    "response": {"id": 1},
//	    "rawHeaders": ["Content-Type", "application/json"]
//	  }
//	]
//
// Documents are validated against an embedded JSON Schema before decoding.
// Engines register the result with intercept.Engine.Define.
package definition
